// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package engine

import (
	"encoding/csv"
	"io"
	"strconv"
)

// TraceRow is one profiled chunk of one call, per spec §6's trace export
// format. Rows are written with encoding/csv: no library in the retrieved
// corpus touches CSV at all, so there is nothing to ground a third-party
// choice on.
type TraceRow struct {
	CallID        string
	ChunkIndex    int
	PartitionSize int
	ScheduleNS    int64
	TaskNS        int64
	CombineNS     int64
	Outcome       string
}

var traceHeader = []string{
	"call_id", "chunk_index", "partition_size", "schedule_ns", "task_ns", "combine_ns", "outcome",
}

// WriteTrace writes rows as CSV (header present, UTF-8, LF line endings) to w.
func WriteTrace(w io.Writer, rows []TraceRow) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false
	if err := cw.Write(traceHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.CallID,
			strconv.Itoa(r.ChunkIndex),
			strconv.Itoa(r.PartitionSize),
			strconv.FormatInt(r.ScheduleNS, 10),
			strconv.FormatInt(r.TaskNS, 10),
			strconv.FormatInt(r.CombineNS, 10),
			r.Outcome,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
