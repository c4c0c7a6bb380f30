package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/session"
	"github.com/tessro/spool/internal/tui"
)

const consoleHelp = `Commands:
  t                          play/pause
  n, p                       next, previous
  j <item>                   jump to a queue item
  seek <m:ss|seconds>        seek in the current track
  v <0-100>                  set volume
  r [off|one|all]            set or cycle repeat
  s                          toggle shuffle
  l                          list the queue
  a <uri> [next|end|after <item>]
                             add library items
  i <uri> <before|after <item>|end>
                             insert library items at a drop position
  rm <item>                  remove an item
  mv <items> <before|after <item>|end>
                             move items, keeping their order
  q                          quit`

// console runs line commands against a playing session.
type console struct {
	s   *session.Session
	out io.Writer
}

// run executes line and returns what it printed. The player's command
// line calls it from several goroutines.
func (c *console) run(ctx context.Context, line string) (string, error) {
	var buf bytes.Buffer
	lc := console{s: c.s, out: &buf}
	err := lc.exec(ctx, line)
	return buf.String(), err
}

func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.printStatus()
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "q", "quit", "exit":
		return tui.ErrQuit
	case "h", "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "st", "status":
		c.printStatus()
	case "t", "toggle":
		c.s.TogglePlay()
	case "n", "next":
		return c.s.Next(ctx)
	case "p", "prev", "previous":
		return c.s.Previous(ctx)
	case "j", "jump":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		return c.s.PlayQueueItem(ctx, id)
	case "seek":
		if len(args) != 1 {
			return fmt.Errorf("usage: seek <m:ss|seconds>")
		}
		pos, err := parsePosition(args[0])
		if err != nil {
			return err
		}
		c.s.Seek(pos)
	case "v", "vol", "volume":
		if len(args) != 1 {
			return fmt.Errorf("usage: v <0-100>")
		}
		level, err := parseVolume(args[0])
		if err != nil {
			return err
		}
		return c.s.SetVolume(level)
	case "r", "repeat":
		mode := c.s.Settings().Repeat.Cycle()
		if len(args) > 0 {
			var err error
			if mode, err = core.ParseRepeatMode(args[0]); err != nil {
				return err
			}
		}
		return c.s.SetRepeat(ctx, mode)
	case "s", "shuffle":
		return c.s.ToggleShuffle(ctx)
	case "l", "ls", "queue":
		q := c.s.Queue()
		if q == nil {
			fmt.Fprintln(c.out, "No active queue")
			return nil
		}
		renderQueue(c.out, q, 0)
	case "a", "add":
		if len(args) == 0 {
			return fmt.Errorf("usage: a <uri> [next|end|after <item>]")
		}
		at, err := parsePlacement(args[1:])
		if err != nil {
			return err
		}
		return c.s.AddToQueue(ctx, []string{args[0]}, at)
	case "i", "insert":
		if len(args) < 2 {
			return fmt.Errorf("usage: i <uri> <before|after <item>|end>")
		}
		target, err := parseDropTarget(args[1:])
		if err != nil {
			return err
		}
		return c.s.InsertTracks(ctx, []string{args[0]}, target)
	case "rm", "remove":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		return c.s.RemoveFromQueue(ctx, id)
	case "mv", "move":
		if len(args) < 2 {
			return fmt.Errorf("usage: mv <items> <before|after <item>|end>")
		}
		ids, err := parseIDs(args[:1])
		if err != nil {
			return err
		}
		target, err := parseDropTarget(args[1:])
		if err != nil {
			return err
		}
		return c.s.MoveTrack(ctx, ids, target)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return nil
}

func (c *console) printStatus() {
	q := c.s.Queue()
	fmt.Fprint(c.out, nowPlayingLines(c.s.NowPlaying(), c.s.PlayerState(), c.s.Status(),
		c.s.Settings().Volume, c.s.Settings().Repeat, q != nil && q.Shuffled))
}

func oneID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one item id")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func parseVolume(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("volume must be between 0 and 100")
	}
	return v, nil
}

// parsePosition accepts "90", "1:30" or a Go duration like "1m30s".
func parsePosition(s string) (time.Duration, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mi, err1 := strconv.Atoi(m)
		si, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || mi < 0 || si < 0 || si >= 60 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return time.Duration(mi)*time.Minute + time.Duration(si)*time.Second, nil
	}
	if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, nil
	}
	return 0, fmt.Errorf("invalid position %q", s)
}

// parsePlacement reads "next", "end", "after <item>" or nothing (end).
func parsePlacement(args []string) (core.Placement, error) {
	if len(args) == 0 {
		return core.Placement{End: true}, nil
	}
	switch args[0] {
	case "next":
		if len(args) == 1 {
			return core.Placement{Next: true}, nil
		}
	case "end":
		if len(args) == 1 {
			return core.Placement{End: true}, nil
		}
	case "after":
		id, err := oneID(args[1:])
		if err != nil {
			return core.Placement{}, err
		}
		return core.Placement{After: id}, nil
	}
	return core.Placement{}, fmt.Errorf("placement must be next, end or after <item>")
}

// parseDropTarget reads "before <item>", "after <item>" or "end".
func parseDropTarget(args []string) (core.DropTarget, error) {
	if len(args) == 1 && args[0] == "end" {
		return core.DropAtEnd(), nil
	}
	if len(args) == 2 {
		id, err := oneID(args[1:])
		if err != nil {
			return core.DropTarget{}, err
		}
		switch args[0] {
		case "before":
			return core.DropBeforeItem(id), nil
		case "after":
			return core.DropAfterItem(id), nil
		}
	}
	return core.DropTarget{}, fmt.Errorf("target must be before <item>, after <item> or end")
}
