package fcn

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Header row of the training log file.
const LogHeader = "i_iter,type,loss,acc,acc_cls,iu,fwavacc"

// Record is one appended row of the training log: a single training
// iteration or the averaged result of one validation pass.
type Record struct {
	Iter    int
	Phase   Phase
	Loss    float64
	Acc     float64
	AccCls  float64
	MeanIU  float64
	FwAvAcc float64
}

func (r Record) String() string {
	return fmt.Sprintf("%d: type=%s, loss=%s, acc=%s, acc_cls=%s, iu=%s, fwavacc=%s",
		r.Iter, r.Phase, fmtFloat(r.Loss), fmtFloat(r.Acc), fmtFloat(r.AccCls),
		fmtFloat(r.MeanIU), fmtFloat(r.FwAvAcc))
}

// Logger appends records in CSV format to the log file in the output
// directory. Rows are written unbuffered so they are visible immediately.
type Logger struct {
	f *os.File
}

// Create a new log file with the header row, or reopen an existing one in
// append mode when resuming from a snapshot.
func NewLogger(filePath string, resume bool) (*Logger, error) {
	if resume {
		f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		// the previous log may have been removed from the output dir
		if info, err := f.Stat(); err == nil && info.Size() == 0 {
			if _, err = fmt.Fprintln(f, LogHeader); err != nil {
				f.Close()
				return nil, err
			}
		}
		return &Logger{f: f}, nil
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	if _, err = fmt.Fprintln(f, LogHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &Logger{f: f}, nil
}

// Append one record to the log.
func (l *Logger) Append(r Record) error {
	_, err := fmt.Fprintf(l.f, "%d,%s,%s,%s,%s,%s,%s\n",
		r.Iter, r.Phase, fmtFloat(r.Loss), fmtFloat(r.Acc), fmtFloat(r.AccCls),
		fmtFloat(r.MeanIU), fmtFloat(r.FwAvAcc))
	return err
}

func (l *Logger) Close() error { return l.f.Close() }

// ReadLog parses a log file written by Logger.
func ReadLog(filePath string) ([]Record, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rd := csv.NewReader(f)
	rows, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	var recs []Record
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) != 7 {
			return nil, fmt.Errorf("log row %d: expect 7 fields - got %d", i, len(row))
		}
		var r Record
		if r.Iter, err = strconv.Atoi(row[0]); err != nil {
			return nil, fmt.Errorf("log row %d: %s", i, err)
		}
		if row[1] == "val" {
			r.Phase = Val
		}
		vals := []*float64{&r.Loss, &r.Acc, &r.AccCls, &r.MeanIU, &r.FwAvAcc}
		for j, p := range vals {
			if *p, err = strconv.ParseFloat(row[j+2], 64); err != nil {
				return nil, fmt.Errorf("log row %d: %s", i, err)
			}
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// LogReporter prints every nth record to stdout.
type LogReporter struct {
	Every int
}

func (l LogReporter) Report(r Record) {
	if r.Phase == Val || l.Every <= 1 || r.Iter%l.Every == 0 {
		fmt.Println(r)
	}
}
