package display

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/samvad-hq/metalpal/internal/domain"
)

// HotFollowers is the follower count above which a release header is
// flagged as hot.
const HotFollowers = 100_000

// Printer renders today's releases as console tables.
type Printer struct {
	out      io.Writer
	colorize bool
}

// NewPrinter returns a Printer writing to out. Colored styles are used only
// when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, colorize: shouldColorize(out)}
}

// Summary describes how many releases are dated today and how many of
// them survived filtering.
func Summary(total, accepted int) string {
	if total == 0 {
		return "No releases today"
	}
	return fmt.Sprintf("There are '%d' releases today; out of those, '%d' look interesting!", total, accepted)
}

// Print writes the summary line followed by one table per accepted
// release, most followed artist first.
func (p *Printer) Print(total int, accepted []domain.Release) error {
	if _, err := fmt.Fprintln(p.out, Summary(total, len(accepted))); err != nil {
		return err
	}
	for i, r := range SortByFollowers(accepted) {
		if _, err := fmt.Fprintln(p.out, p.renderRelease(i+1, r)); err != nil {
			return err
		}
	}
	return nil
}

// SortByFollowers returns a copy of releases ordered by follower count,
// highest first. Releases without popularity data sort last.
func SortByFollowers(releases []domain.Release) []domain.Release {
	out := slices.Clone(releases)
	slices.SortStableFunc(out, func(a, b domain.Release) int {
		return compareInt64(followers(b), followers(a))
	})
	return out
}

// Header is the table title for the release at 1-based position pos.
func Header(pos int, r domain.Release) string {
	h := fmt.Sprintf("%d. %s - %s", pos, r.Artist, r.Album)
	if followers(r) > HotFollowers {
		h = "🔥 " + h + " 🔥"
	}
	return h
}

func (p *Printer) renderRelease(pos int, r domain.Release) string {
	tw := table.NewWriter()
	if p.colorize {
		tw.SetStyle(table.StyleColoredBright)
	} else {
		tw.SetStyle(table.StyleRounded)
	}
	tw.SetTitle(Header(pos, r))

	var genres, id, popularity, followersText, country string
	if r.Popularity != nil {
		genres = strings.Join(r.Popularity.Genres, ", ")
		id = r.Popularity.ID
		popularity = strconv.Itoa(r.Popularity.Popularity)
		followersText = strconv.FormatInt(r.Popularity.Followers, 10)
	}
	if r.Archive != nil {
		country = r.Archive.CountryOrigin
	}

	tw.AppendRows([]table.Row{
		{"Genres", genres},
		{"Country", country},
		{"Spotify ID", id},
		{"Spotify Popularity", popularity},
		{"Spotify Followers", followersText},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, WidthMax: 80},
	})
	return tw.Render()
}

func followers(r domain.Release) int64 {
	if r.Popularity == nil {
		return -1
	}
	return r.Popularity.Followers
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
