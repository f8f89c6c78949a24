package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/KarpelesLab/pjson"
	"github.com/KarpelesLab/upload"
	"github.com/dustin/go-humanize"
)

type Report struct {
	Result   string `json:"result"` // "success" or "error"
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
	Path     string `json:"path,omitempty"` // file that failed, when known
	Code     int    `json:"code,omitempty"` // last HTTP status of the failed file
}

func newReport(err error, files int, bytes int64, d time.Duration) *Report {
	r := &Report{Result: "success", Files: files, Bytes: bytes, Duration: d.Round(time.Millisecond).String()}
	if err == nil {
		return r
	}
	r.Result = "error"
	r.Error = err.Error()

	var fe *upload.FileError
	if errors.As(err, &fe) {
		r.Path = fe.Path
	}
	var he *upload.HttpError
	if errors.As(err, &he) {
		r.Code = he.Code
	}
	return r
}

// report prints the outcome and returns err so the command exits non-zero on failure.
func report(err error, files int, bytes int64, d time.Duration) error {
	r := newReport(err, files, bytes, d)

	if jsonReport {
		data, jerr := pjson.Marshal(r)
		if jerr != nil {
			return jerr
		}
		fmt.Fprintf(os.Stdout, "%s\n", data)
		return err
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %s\n", err)
		return err
	}
	fmt.Fprintf(os.Stderr, "uploaded %d file(s), %s in %s\n", r.Files, humanize.IBytes(uint64(r.Bytes)), r.Duration)
	return nil
}
