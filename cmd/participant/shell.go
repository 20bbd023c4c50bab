package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/exstem-room/internal/deadline"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/participant"
)

var errUsage = errors.New("usage")

// devicePlatform is the part of the device the shell can poke at.
type devicePlatform interface {
	ExitFullscreen()
	Awake() bool
}

// shell turns typed commands into participant actions.
type shell struct {
	node     *participant.Node
	platform devicePlatform
	out      io.Writer
}

const helpText = `Lệnh:
  join                      vào phòng
  start                     bắt đầu làm bài
  p1 <câu> <A-D>            phần I
  p2 <câu> <a-d> <t|f>      phần II
  p3 <câu> <đáp án>         phần III
  hide | show               rời / quay lại trang thi
  fs-exit | fs-enter        thoát / vào lại toàn màn hình
  submit                    nộp bài
  status                    xem trạng thái
  review                    xem lại bài (khi giám thị mở)
  quit                      thoát`

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "join":
		err = s.node.Join(ctx)
	case "start":
		err = s.do(ctx, func(m *participant.Machine) error { return m.Start(ctx) })
	case "p1":
		err = s.answerChoice(ctx, args)
	case "p2":
		err = s.answerTrueFalse(ctx, args)
	case "p3":
		err = s.answerText(ctx, args)
	case "hide", "show":
		hidden := cmd == "hide"
		err = s.do(ctx, func(m *participant.Machine) error {
			m.VisibilityChanged(hidden, time.Now())
			return nil
		})
	case "fs-exit":
		err = s.do(ctx, func(m *participant.Machine) error {
			s.platform.ExitFullscreen()
			m.FullscreenChanged(false)
			return nil
		})
	case "fs-enter":
		err = s.do(ctx, (*participant.Machine).ReEnterFullscreen)
	case "submit":
		err = s.do(ctx, func(m *participant.Machine) error { return m.Submit(true) })
	case "status":
		err = s.do(ctx, func(m *participant.Machine) error {
			printView(s.out, m.View(time.Now()), s.platform.Awake())
			return nil
		})
	case "review":
		err = s.do(ctx, func(m *participant.Machine) error {
			rv, err := m.Review()
			if err != nil {
				return err
			}
			printReview(s.out, rv)
			return nil
		})
	default:
		err = fmt.Errorf("%w: unknown command %q, type help", errUsage, cmd)
	}

	if err != nil {
		fmt.Fprintln(s.out, "Lỗi:", err)
	}
	return false
}

func (s *shell) do(ctx context.Context, fn func(*participant.Machine) error) error {
	return s.node.Do(ctx, fn)
}

func (s *shell) answerChoice(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: p1 <question> <A-D>", errUsage)
	}
	q, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: question must be a number", errUsage)
	}
	return s.do(ctx, func(m *participant.Machine) error { return m.SetChoice(q, args[1]) })
}

func (s *shell) answerTrueFalse(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: p2 <question> <a-d> <t|f>", errUsage)
	}
	q, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: question must be a number", errUsage)
	}
	value, err := parseTruth(args[2])
	if err != nil {
		return err
	}
	sub := model.SubQuestion(args[1])
	return s.do(ctx, func(m *participant.Machine) error { return m.SetTrueFalse(q, sub, value) })
}

func (s *shell) answerText(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: p3 <question> <answer>", errUsage)
	}
	q, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: question must be a number", errUsage)
	}
	text := strings.Join(args[1:], " ")
	return s.do(ctx, func(m *participant.Machine) error { return m.SetText(q, text) })
}

func parseTruth(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "t", "true", "d", "đ", "đúng":
		return true, nil
	case "f", "false", "s", "sai":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected t or f, got %q", errUsage, raw)
}

func printView(w io.Writer, v participant.View, awake bool) {
	fmt.Fprintf(w, "Trạng thái: %s | phòng: %s\n", v.State, v.Status)
	if v.State == participant.StartedActive {
		fmt.Fprintf(w, "Thời gian còn lại: %s\n", deadline.Format(v.Remaining))
		fmt.Fprintf(w, "Giữ màn hình sáng: %s\n", onOff(awake))
	}
	fmt.Fprintf(w, "Đã trả lời: %d | số lần vi phạm: %d\n", v.Answered, v.Violations)
	if v.Blocked {
		fmt.Fprintln(w, "Bài thi đang bị khóa: hãy vào lại toàn màn hình (fs-enter).")
	}
	if v.Warning {
		fmt.Fprintln(w, "Cảnh báo: bạn vừa rời khỏi trang thi.")
	}
	if v.HasScore {
		fmt.Fprintf(w, "Điểm: %.2f\n", v.Score)
	}
}

func onOff(on bool) string {
	if on {
		return "bật"
	}
	return "tắt"
}

func printReview(w io.Writer, rv grading.Review) {
	fmt.Fprintf(w, "Điểm: %.2f / %.2f\n", rv.Score, rv.Max)
	fmt.Fprint(w, "Phần I:")
	for _, q := range sortedKeys(rv.Part1) {
		fmt.Fprintf(w, " %d%s", q, mark(rv.Part1[q]))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Phần II:")
	for _, q := range sortedKeys(rv.Part2) {
		block := rv.Part2[q]
		fmt.Fprintf(w, "  Câu %d:", q)
		for _, sub := range model.SubQuestions {
			fmt.Fprintf(w, " %s%s", sub, mark(block.Statements[sub]))
		}
		fmt.Fprintf(w, " (%d đúng, %.2f điểm)\n", block.Matches, block.Points)
	}

	fmt.Fprint(w, "Phần III:")
	for _, q := range sortedKeys(rv.Part3) {
		fmt.Fprintf(w, " %d%s", q, mark(rv.Part3[q]))
	}
	fmt.Fprintln(w)
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
