package parallel

// PartitionMap splits the index range [0, MaxIndex) into NP contiguous
// buckets whose sizes differ by at most one
type PartitionMap struct {
	MaxIndex   int
	NP         int
	Partitions [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(NP, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:   maxIndex,
		NP:         NP,
		Partitions: make([][2]int, NP),
	}
	for n := 0; n < NP; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the bucket holding index k and the bucket bounds, or
// bucket -1 when k is out of range
func (pm *PartitionMap) GetBucket(k int) (bucketNum, min, max int) {
	if k < 0 || k >= pm.MaxIndex {
		return -1, 0, 0
	}
	// Initial guess
	bucketNum = int(float64(pm.NP*k) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= k && pm.Partitions[bucketNum][1] > k) {
		if pm.Partitions[bucketNum][0] > k {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.NP {
			return -1, 0, 0
		}
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) int {
	if bn == -1 {
		return pm.MaxIndex
	}
	return pm.Partitions[bn][1] - pm.Partitions[bn][0]
}

func (pm *PartitionMap) Split1D(bn int) (bucket [2]int) {
	var (
		Npart            = pm.MaxIndex / pm.NP
		startAdd, endAdd int
		remainder        = pm.MaxIndex % pm.NP
	)
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if bn+1 > remainder {
			startAdd = remainder
		} else {
			startAdd = bn
			endAdd = 1
		}
	}
	bucket[0] = bn*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
