package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkHerbivoreCrash    BookmarkType = "herbivore_crash"
	BookmarkCarnivoreRecovery BookmarkType = "carnivore_recovery"
	BookmarkStableCoexistence BookmarkType = "stable_coexistence"
	BookmarkExtinction        BookmarkType = "extinction"
)

// Bookmark marks a notable year in a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type" db:"type"`
	Year        int          `csv:"year" db:"year"`
	Description string       `csv:"description" db:"description"`
}

// LogBookmark logs the bookmark on logger, or the default logger when nil.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bookmark",
		"type", string(b.Type),
		"year", b.Year,
		"description", b.Description,
	)
}

// stableYears is how many consecutive calm years make a stable coexistence.
const stableYears = 5

// BookmarkDetector detects notable years from the stream of YearStats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []YearStats
	historySize int
	historyIdx  int
	historyFull bool

	recentCarnMin   int // minimum carnivore count since the last recovery
	recentHerbPeak  int // peak herbivore count since the last crash
	stableYearCount int // consecutive years with low variation
	prev            *YearStats
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < stableYears {
		historySize = stableYears
	}
	return &BookmarkDetector{
		history:       make([]YearStats, historySize),
		historySize:   historySize,
		recentCarnMin: -1,
	}
}

// Check analyses the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats YearStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.prev != nil {
		bookmarks = append(bookmarks, bd.checkExtinction(stats)...)
		if b := bd.checkCarnivoreRecovery(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkHerbivoreCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	if b := bd.checkStableCoexistence(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if stats.Carnivores > 0 && (bd.recentCarnMin < 0 || stats.Carnivores < bd.recentCarnMin) {
		bd.recentCarnMin = stats.Carnivores
	}
	if stats.Herbivores > bd.recentHerbPeak {
		bd.recentHerbPeak = stats.Herbivores
	}
	prev := stats
	bd.prev = &prev

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats YearStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n of the latest records, oldest first.
func (bd *BookmarkDetector) recent(n int) []YearStats {
	size := bd.historyIdx
	if bd.historyFull {
		size = bd.historySize
	}
	if n > size {
		n = size
	}
	out := make([]YearStats, n)
	for i := range n {
		idx := (bd.historyIdx - n + i + bd.historySize) % bd.historySize
		out[i] = bd.history[idx]
	}
	return out
}

func (bd *BookmarkDetector) checkExtinction(stats YearStats) []Bookmark {
	var out []Bookmark
	if bd.prev.Herbivores > 0 && stats.Herbivores == 0 {
		out = append(out, Bookmark{
			Type:        BookmarkExtinction,
			Year:        stats.Year,
			Description: fmt.Sprintf("Herbivores died out (were %d)", bd.prev.Herbivores),
		})
	}
	if bd.prev.Carnivores > 0 && stats.Carnivores == 0 {
		out = append(out, Bookmark{
			Type:        BookmarkExtinction,
			Year:        stats.Year,
			Description: fmt.Sprintf("Carnivores died out (were %d)", bd.prev.Carnivores),
		})
	}
	return out
}

func (bd *BookmarkDetector) checkCarnivoreRecovery(stats YearStats) *Bookmark {
	if bd.recentCarnMin <= 0 || bd.recentCarnMin > 3 {
		return nil
	}

	threshold := bd.recentCarnMin * 3
	if stats.Carnivores >= threshold && stats.Carnivores >= 6 {
		oldMin := bd.recentCarnMin
		bd.recentCarnMin = stats.Carnivores

		return &Bookmark{
			Type:        BookmarkCarnivoreRecovery,
			Year:        stats.Year,
			Description: fmt.Sprintf("Carnivore population recovered from %d to %d", oldMin, stats.Carnivores),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkHerbivoreCrash(stats YearStats) *Bookmark {
	if bd.recentHerbPeak == 0 {
		return nil
	}

	drop := 1.0 - float64(stats.Herbivores)/float64(bd.recentHerbPeak)
	if drop > 0.30 && stats.Herbivores < bd.recentHerbPeak-10 {
		oldPeak := bd.recentHerbPeak
		bd.recentHerbPeak = stats.Herbivores

		return &Bookmark{
			Type:        BookmarkHerbivoreCrash,
			Year:        stats.Year,
			Description: fmt.Sprintf("Herbivores crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Herbivores),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStableCoexistence(stats YearStats) *Bookmark {
	if stats.Herbivores < 10 || stats.Carnivores < 3 {
		bd.stableYearCount = 0
		return nil
	}

	window := bd.recent(4)
	if len(window) < 4 {
		return nil
	}

	herb := make([]float64, len(window))
	carn := make([]float64, len(window))
	for i, h := range window {
		herb[i] = float64(h.Herbivores)
		carn[i] = float64(h.Carnivores)
	}

	// Coefficient of variation below 20% for both species.
	if cv(herb) < 0.2 && cv(carn) < 0.2 {
		bd.stableYearCount++
	} else {
		bd.stableYearCount = 0
	}

	if bd.stableYearCount == stableYears {
		return &Bookmark{
			Type:        BookmarkStableCoexistence,
			Year:        stats.Year,
			Description: fmt.Sprintf("Stable coexistence with %d herbivores, %d carnivores over %d+ years", stats.Herbivores, stats.Carnivores, stableYears),
		}
	}
	return nil
}

// cv is the population coefficient of variation of xs.
func cv(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	if mean == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil) / mean
}
