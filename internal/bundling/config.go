package bundling

// CategoryPair is a cross-category pairing used by the complementary generator.
type CategoryPair struct {
	Primary    string  `mapstructure:"primary" yaml:"primary"`
	Secondary  string  `mapstructure:"secondary" yaml:"secondary"`
	Confidence float64 `mapstructure:"confidence" yaml:"confidence"`
}

// Config holds the bundling thresholds.
type Config struct {
	MinSize                  int
	MaxSize                  int
	MinDiscount              float64
	MaxDiscount              float64
	ConfidenceThreshold      float64
	MaxSelected              int
	MaxPerType               int
	MaxActive                int
	AssociationMinConfidence float64
	AssociationMinLift       float64
	DiscontinueBelow         float64
	CategoryPairs            []CategoryPair
}

// DefaultCategoryPairs are the cross-category pairings shipped by default.
func DefaultCategoryPairs() []CategoryPair {
	return []CategoryPair{
		{Primary: "audio", Secondary: "mobile_accessories", Confidence: 0.65},
		{Primary: "mobile_accessories", Secondary: "computer_accessories", Confidence: 0.6},
	}
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinSize:                  2,
		MaxSize:                  4,
		MinDiscount:              0.05,
		MaxDiscount:              0.25,
		ConfidenceThreshold:      0.6,
		MaxSelected:              10,
		MaxPerType:               3,
		MaxActive:                20,
		AssociationMinConfidence: 0.6,
		AssociationMinLift:       1.5,
		DiscontinueBelow:         0.01,
		CategoryPairs:            DefaultCategoryPairs(),
	}
}
