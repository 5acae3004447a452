package signals

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// CartConfig tunes the cart analyzer.
type CartConfig struct {
	AbandonmentHours int
	MinSupport       float64
	MinConfidence    float64
	LookbackDays     int
	AlertRate        float64
}

func DefaultCartConfig() CartConfig {
	return CartConfig{
		AbandonmentHours: 24,
		MinSupport:       0.1,
		MinConfidence:    0.5,
		LookbackDays:     30,
		AlertRate:        0.3,
	}
}

const (
	maxRules       = 20
	maxAbandoned   = 5
	hintLift       = 1.2
	hintsPerItem   = 2
	optimalBracket = 0.7
)

// Cart value ranges used for abandonment and price sensitivity.
var (
	abandonRanges = []valueRange{{"0-50", 50}, {"50-100", 100}, {"100-200", 200}, {"200+", 0}}
	sensBrackets  = []valueRange{{"0-25", 25}, {"25-50", 50}, {"50-100", 100}, {"100-200", 200}, {"200+", 0}}
)

type valueRange struct {
	label string
	upper float64
}

func bucket(ranges []valueRange, v float64) string {
	for _, r := range ranges {
		if r.upper == 0 || v < r.upper {
			return r.label
		}
	}
	return ranges[len(ranges)-1].label
}

// CartAnalyzer mines cart sessions for abandonment, associations and
// price sensitivity, and publishes a BehaviorReport.
type CartAnalyzer struct {
	base
	cfg  CartConfig
	feed domain.CartFeed
}

func NewCartAnalyzer(cfg CartConfig, feed domain.CartFeed, emit *agent.Emitter, opts ...Option) *CartAnalyzer {
	return &CartAnalyzer{base: newBase(domain.AgentCart, emit, opts), cfg: cfg, feed: feed}
}

func (a *CartAnalyzer) Name() string { return domain.AgentCart }

func (a *CartAnalyzer) Execute(ctx context.Context) (agent.Result, error) {
	now := a.now()
	carts, err := a.feed.Carts(ctx, now.AddDate(0, 0, -a.cfg.LookbackDays))
	if err != nil {
		return agent.Result{}, fmt.Errorf("fetch carts: %w", err)
	}

	report := a.analyze(carts, now)
	a.emit.Publish(ctx, domain.TopicCartInsight, report)

	n := 0
	if report.AbandonmentRate > a.cfg.AlertRate {
		a.emit.Emit(ctx, "", domain.Recommendation{
			Type:       domain.RecAbandonmentReduction,
			Text:       "Run cart recovery campaigns",
			Confidence: 0.8,
			Impact:     domain.LevelHigh,
			Urgency:    domain.LevelMedium,
			Rationale:  fmt.Sprintf("abandonment rate %.1f%%", report.AbandonmentRate*100),
			Details: map[string]any{
				"abandonment_rate": report.AbandonmentRate,
				"risk_factors":     report.RiskFactors,
				"most_abandoned":   report.MostAbandoned,
			},
		})
		n++
	}
	for _, primary := range slices.Sorted(maps.Keys(report.BundleHints)) {
		items := append([]string{primary}, report.BundleHints[primary]...)
		a.emit.Emit(ctx, "", domain.Recommendation{
			Type:       domain.RecBundleOpportunity,
			ProductID:  primary,
			Text:       "Bundle " + strings.Join(items, ", "),
			Confidence: hintConfidence(report.Associations, primary, report.BundleHints[primary]),
			Impact:     domain.LevelMedium,
			Urgency:    domain.LevelLow,
			Rationale:  "frequently bought together",
			Details:    map[string]any{"items": items},
		})
		n++
	}

	a.logger.Info("cart analysis complete",
		slog.Int("carts", len(carts)),
		slog.Float64("abandonment_rate", report.AbandonmentRate),
		slog.Int("rules", len(report.Associations)),
	)
	return agent.Result{Recommendations: n}, nil
}

func (a *CartAnalyzer) analyze(carts []domain.Cart, now time.Time) domain.BehaviorReport {
	cutoff := time.Duration(a.cfg.AbandonmentHours) * time.Hour
	var completed, abandoned []domain.Cart
	for _, c := range carts {
		switch {
		case c.CompletedAt != nil:
			completed = append(completed, c)
		case now.Sub(c.UpdatedAt) >= cutoff:
			abandoned = append(abandoned, c)
		}
	}

	r := domain.BehaviorReport{
		AbandonedByRange: make(map[string]int),
		PriceSensitivity: make(map[string]float64),
		GeneratedAt:      now,
	}
	if len(carts) > 0 {
		r.AbandonmentRate = float64(len(abandoned)) / float64(len(carts))
	}

	for _, rg := range abandonRanges {
		r.AbandonedByRange[rg.label] = 0
	}
	units := make(map[string]int)
	var hours []float64
	for _, c := range abandoned {
		r.AbandonedByRange[bucket(abandonRanges, c.Total())]++
		for _, it := range c.Items {
			units[it.ProductID] += it.Quantity
		}
		hours = append(hours, c.UpdatedAt.Sub(c.CreatedAt).Hours())
	}
	r.MostAbandoned = topByCount(units, maxAbandoned)
	r.AvgHoursInCart = mean(hours)
	r.RiskFactors = riskFactors(abandoned, completed)

	rules := mineRules(completed, a.cfg.MinSupport, a.cfg.MinConfidence)
	r.BundleHints = bundleHints(rules)
	r.Associations = rules[:min(len(rules), maxRules)]

	r.PriceSensitivity, r.OptimalBrackets = priceSensitivity(completed, abandoned)
	r.PeakDay, r.PeakHour = peaks(completed)
	return r
}

func riskFactors(abandoned, completed []domain.Cart) []string {
	if len(abandoned) == 0 || len(completed) == 0 {
		return nil
	}
	var out []string
	var aVal, cVal, aItems, cItems []float64
	for _, c := range abandoned {
		aVal = append(aVal, c.Total())
		aItems = append(aItems, float64(len(c.Items)))
	}
	for _, c := range completed {
		cVal = append(cVal, c.Total())
		cItems = append(cItems, float64(len(c.Items)))
	}
	if mean(aVal) > mean(cVal)*1.2 {
		out = append(out, "high_cart_value")
	}
	if mean(aItems) > mean(cItems) {
		out = append(out, "multiple_items")
	}
	return out
}

// mineRules derives pairwise association rules from completed carts, strongest lift first.
func mineRules(completed []domain.Cart, minSupport, minConfidence float64) []domain.AssociationRule {
	total := float64(len(completed))
	if total == 0 {
		return nil
	}
	itemCount := make(map[string]int)
	pairCount := make(map[[2]string]int)
	for _, c := range completed {
		set := make(map[string]bool)
		for _, it := range c.Items {
			set[it.ProductID] = true
		}
		items := slices.Sorted(maps.Keys(set))
		for i, a := range items {
			itemCount[a]++
			for _, b := range items[i+1:] {
				pairCount[[2]string{a, b}]++
			}
		}
	}

	var rules []domain.AssociationRule
	pairs := slices.SortedFunc(maps.Keys(pairCount), func(x, y [2]string) int {
		if c := cmp.Compare(x[0], y[0]); c != 0 {
			return c
		}
		return cmp.Compare(x[1], y[1])
	})
	for _, pair := range pairs {
		n := float64(pairCount[pair])
		support := n / total
		if support < minSupport {
			continue
		}
		for _, dir := range [][2]string{{pair[0], pair[1]}, {pair[1], pair[0]}} {
			conf := n / float64(itemCount[dir[0]])
			if conf < minConfidence {
				continue
			}
			rules = append(rules, domain.AssociationRule{
				Antecedent: dir[0],
				Consequent: dir[1],
				Support:    support,
				Confidence: conf,
				Lift:       conf / (float64(itemCount[dir[1]]) / total),
			})
		}
	}
	slices.SortStableFunc(rules, func(x, y domain.AssociationRule) int {
		return cmp.Compare(y.Lift, x.Lift)
	})
	return rules
}

// bundleHints keeps the two most confident consequents of every antecedent with a strong rule.
func bundleHints(rules []domain.AssociationRule) map[string][]string {
	byAnte := make(map[string][]domain.AssociationRule)
	for _, r := range rules {
		if r.Lift > hintLift {
			byAnte[r.Antecedent] = append(byAnte[r.Antecedent], r)
		}
	}
	out := make(map[string][]string, len(byAnte))
	for ante, rs := range byAnte {
		slices.SortStableFunc(rs, func(x, y domain.AssociationRule) int {
			return cmp.Compare(y.Confidence, x.Confidence)
		})
		for _, r := range rs[:min(len(rs), hintsPerItem)] {
			out[ante] = append(out[ante], r.Consequent)
		}
	}
	return out
}

func hintConfidence(rules []domain.AssociationRule, ante string, consequents []string) float64 {
	var confs []float64
	for _, r := range rules {
		if r.Antecedent == ante && slices.Contains(consequents, r.Consequent) {
			confs = append(confs, r.Confidence)
		}
	}
	return mean(confs)
}

// priceSensitivity returns the completion rate per cart value bracket and the brackets above 70%.
func priceSensitivity(completed, abandoned []domain.Cart) (map[string]float64, []string) {
	done := make(map[string]int)
	seen := make(map[string]int)
	for _, c := range completed {
		b := bucket(sensBrackets, c.Total())
		done[b]++
		seen[b]++
	}
	for _, c := range abandoned {
		seen[bucket(sensBrackets, c.Total())]++
	}
	rates := make(map[string]float64)
	var optimal []string
	for _, b := range sensBrackets {
		if seen[b.label] == 0 {
			continue
		}
		rate := float64(done[b.label]) / float64(seen[b.label])
		rates[b.label] = rate
		if rate > optimalBracket {
			optimal = append(optimal, b.label)
		}
	}
	return rates, optimal
}

// peaks returns the weekday and hour with most checkouts, earliest on ties.
func peaks(completed []domain.Cart) (string, int) {
	if len(completed) == 0 {
		return "", -1
	}
	var days [7]int
	var hours [24]int
	for _, c := range completed {
		t := c.CompletedAt.UTC()
		days[t.Weekday()]++
		hours[t.Hour()]++
	}
	day, hour := 0, 0
	for i := range days {
		if days[i] > days[day] {
			day = i
		}
	}
	for i := range hours {
		if hours[i] > hours[hour] {
			hour = i
		}
	}
	return time.Weekday(day).String(), hour
}

func topByCount(counts map[string]int, n int) []string {
	ids := slices.Collect(maps.Keys(counts))
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids[:min(len(ids), n)]
}
