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
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// startTrace records the spans of the solvers and the processor exchanges,
// the returned func prints the time spent under each span name
func startTrace(w io.Writer) (summarise func()) {
	var (
		sr = tracetest.NewSpanRecorder()
		tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	)
	otel.SetTracerProvider(tp)
	return func() {
		_ = tp.Shutdown(context.Background())
		type total struct {
			count int
			time  time.Duration
		}
		totals := make(map[string]*total)
		for _, s := range sr.Ended() {
			t, ok := totals[s.Name()]
			if !ok {
				t = &total{}
				totals[s.Name()] = t
			}
			t.count++
			t.time += s.EndTime().Sub(s.StartTime())
		}
		names := make([]string, 0, len(totals))
		for name := range totals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%-24s calls = %6d, time = %v\n", name, totals[name].count, totals[name].time)
		}
	}
}
