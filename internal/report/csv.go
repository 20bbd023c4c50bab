// Package report renders the examiner's result exports.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/stemsi/exstem-room/internal/model"
)

// TimeLayout matches how Vietnamese locales print a timestamp.
const TimeLayout = "15:04:05 2/1/2006"

// bom makes spreadsheet tools read the file as UTF-8.
const bom = "\ufeff"

var csvHeader = []string{"STT", "Họ và Tên", "Thời gian nộp", "Điểm Số", "Số lần thoát màn hình"}

// FileName is the download name of the export for roomID.
func FileName(roomID int) string {
	return fmt.Sprintf("ket_qua_thi_phong_%d.csv", roomID)
}

// Ranked returns a copy of subs ordered by score, highest first. Equal
// scores keep their submission order.
func Ranked(subs []model.Submission) []model.Submission {
	out := make([]model.Submission, len(subs))
	copy(out, subs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// WriteCSV writes the ranked result table. Timestamps are rendered in loc.
func WriteCSV(w io.Writer, subs []model.Submission, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, sub := range Ranked(subs) {
		row := []string{
			strconv.Itoa(i + 1),
			sub.Name,
			sub.SubmittedAt.In(loc).Format(TimeLayout),
			strconv.FormatFloat(sub.Score, 'f', -1, 64),
			strconv.Itoa(sub.ViolationCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
