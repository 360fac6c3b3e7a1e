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
	"os"

	"github.com/gocarina/gocsv"

	"github.com/notargets/gridfluid/model_problems/GridFluid"
)

// StatsWriter appends frame stats as CSV rows, writing the header with the first row
type StatsWriter struct {
	out           io.Writer
	closer        io.Closer
	headerWritten bool
}

func NewStatsWriter(out io.Writer) *StatsWriter {
	return &StatsWriter{out: out}
}

// CreateStatsFile returns nil when path is empty
func CreateStatsFile(path string) (*StatsWriter, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	sw := NewStatsWriter(f)
	sw.closer = f
	return sw, nil
}

func (sw *StatsWriter) Write(fs GridFluid.FrameStats) error {
	if sw == nil {
		return nil
	}
	records := []GridFluid.FrameStats{fs}
	if !sw.headerWritten {
		if err := gocsv.Marshal(records, sw.out); err != nil {
			return fmt.Errorf("writing frame stats: %w", err)
		}
		sw.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, sw.out); err != nil {
		return fmt.Errorf("writing frame stats: %w", err)
	}
	return nil
}

func (sw *StatsWriter) Close() error {
	if sw == nil || sw.closer == nil {
		return nil
	}
	return sw.closer.Close()
}
