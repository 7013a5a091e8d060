// nextmove scores a piece of free-form text for stability and prints the
// indicator record. It is the thin presentation layer over the engine:
// flags in, one processed turn (or a history listing) out.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/hiddenpointz/Next-Move/internal/advisor"
	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/engine"
	"github.com/hiddenpointz/Next-Move/internal/logging"
	"github.com/hiddenpointz/Next-Move/internal/sources"
	"github.com/hiddenpointz/Next-Move/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	badgeBase  = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("231"))

	tierColors = map[engine.RiskTier]lipgloss.Color{
		engine.TierStable:   lipgloss.Color("34"),  // green
		engine.TierCaution:  lipgloss.Color("214"), // amber
		engine.TierCritical: lipgloss.Color("160"), // red
	}
)

func main() {
	sessionID := flag.String("session", "", "session identity (a new one is generated when empty)")
	showHistory := flag.Bool("history", false, "print the archived coherence history for -session and exit")
	noArchive := flag.Bool("no-archive", false, "skip archiving the record to the local database")
	flag.Parse()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	defer logging.Close()

	if err := run(*sessionID, *showHistory, *noArchive); err != nil {
		fmt.Fprintf(os.Stderr, "nextmove: %v\n", err)
		os.Exit(1)
	}
}

func run(sessionID string, showHistory, noArchive bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	archive, err := openArchive()
	if err != nil {
		// Archiving is optional; the turn still runs without it.
		logging.Warn("archive unavailable", "err", err)
		archive = nil
	}
	if archive != nil {
		defer archive.Close()
	}

	if showHistory {
		if sessionID == "" {
			return fmt.Errorf("-history requires -session")
		}
		if archive == nil {
			return fmt.Errorf("no archive available")
		}
		return printHistory(archive, sessionID)
	}

	text, err := inputText(flag.Args())
	if err != nil {
		return err
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
		fmt.Printf("%s %s\n\n", labelStyle.Render("session"), sessionID)
	}

	manager := advisor.NewManager(advisor.DefaultProviders()...)
	if cfg.Advisor.Preferred != "" {
		manager.SetPreferred(cfg.Advisor.Preferred)
	}
	var adv *advisor.Advisor
	if cfg.Advisor.Enabled {
		adv = advisor.New(manager, cfg.Advisor.MaxTokens, cfg.AdvisorTimeout())
	}

	eng := engine.New(cfg.Engine, []sources.Adapter{
		sources.NewMarketSource(cfg.Sources.Market),
		sources.NewLiteratureSource(cfg.Sources.Literature),
		sources.NewEncyclopediaSource(cfg.Sources.Encyclopedia),
	}, cfg.SourceTimeout(), adv)

	rec, err := eng.Process(context.Background(), sessionID, text)
	if err != nil {
		if err == engine.ErrEmptyInput {
			return fmt.Errorf("nothing to analyze: the input text is empty")
		}
		return err
	}

	render(rec)

	if archive != nil && !noArchive {
		if err := archive.SaveRecord(sessionID, rec); err != nil {
			logging.Warn("archive write failed", "err", err)
		}
	}
	return nil
}

func openArchive() (*store.Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".nextmove")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return store.Open(filepath.Join(dir, "archive.db"))
}

// inputText takes the analysis text from the arguments, or stdin when no
// argument is given (so `echo text | nextmove` works).
func inputText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	return "", fmt.Errorf("no input: pass text as an argument or via stdin")
}

func render(rec *engine.Record) {
	badge := badgeBase.Background(tierColors[rec.Verdict.Tier]).Render(string(rec.Verdict.Tier))

	fmt.Printf("%s  %s\n", titleStyle.Render(fmt.Sprintf("Turn %d", rec.Turn)), badge)
	fmt.Printf("%s\n\n", rec.Verdict.Summary)

	fmt.Printf("%s %.4f   %s %.2f   %s %.2f   %s %+.2f   %s %s\n\n",
		labelStyle.Render("Ω"), rec.Coherence,
		labelStyle.Render("I_seq"), rec.Instability,
		labelStyle.Render("A/T"), rec.AgencyTensionRatio,
		labelStyle.Render("τ"), rec.ResidualTension,
		labelStyle.Render("agency"), rec.AgencySign)

	tri := rec.Triangulation
	fmt.Println(titleStyle.Render("Triangulation"))
	fmt.Printf("  intensity %.1f  science %.1f  consistency %.1f  market %.1f  advisory %.1f\n",
		tri.UserIntensity, tri.ScienceSignal, tri.AIConsistency, tri.MarketScore, tri.AdvisoryScore)
	if len(tri.Fallbacks) > 0 {
		fmt.Printf("  %s %s\n", labelStyle.Render("defaults used:"), strings.Join(tri.Fallbacks, ", "))
	}
	fmt.Println()

	fmt.Println(titleStyle.Render("Indicators"))
	names := make([]string, 0, len(rec.Indicators))
	for name := range rec.Indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-14s %6.2f\n", name, rec.Indicators[name])
	}
	fmt.Println()

	fmt.Println(titleStyle.Render("Next moves"))
	for i, p := range rec.Prescriptions {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
}

func printHistory(archive *store.Store, sessionID string) error {
	values, err := archive.Coherences(sessionID)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(values) == 0 {
		fmt.Println("no history for this session")
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Ω history (%d turns)", len(values))))
	for i, v := range values {
		fmt.Printf("  T%-3d %.4f %s\n", i+1, v, bar(v))
	}
	return nil
}

// bar renders a coarse inline trend bar for one coherence value.
func bar(v float64) string {
	n := int(v * 40)
	if n < 1 {
		n = 1
	}
	return labelStyle.Render(strings.Repeat("▇", n))
}
