//go:build linux

/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"

	perf "github.com/hodgesds/perf-utils"
)

// measure counts the instructions retired by the thread running fn, the
// subdomain goroutines are not included
func measure(w io.Writer, fn func() error) (err error) {
	var (
		fnErr error
		ran   bool
	)
	pv, err := perf.CPUInstructions(func() error {
		ran, fnErr = true, fn()
		return nil
	})
	if err != nil {
		fmt.Fprintf(w, "perf counters unavailable: %v\n", err)
		if !ran {
			return fn()
		}
	} else {
		fmt.Fprintf(w, "instructions: %d, time enabled: %dns, time running: %dns\n",
			pv.Value, pv.TimeEnabled, pv.TimeRunning)
	}
	return fnErr
}
