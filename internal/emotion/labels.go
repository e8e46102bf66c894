package emotion

// Label is the fine-grained classifier output.
type Label string

// Classifier labels.
const (
	LabelHappy   Label = "Happy"
	LabelCalm    Label = "Calm"
	LabelSad     Label = "Sad"
	LabelTense   Label = "Tense"
	LabelNeutral Label = "Neutral"
	LabelSpeech  Label = "Speech"
)

// Category is the application-level emotion bucket stored with each event.
type Category string

// Emotion categories, in ordinal order.
const (
	CategoryHappy   Category = "Excited/Happy"
	CategoryCalm    Category = "Calm/Content"
	CategorySad     Category = "Sad/Melancholic"
	CategoryTense   Category = "Tense/Angry"
	CategoryNeutral Category = "Neutral"
)

var categories = []Category{CategoryHappy, CategoryCalm, CategorySad, CategoryTense, CategoryNeutral}

// Categories returns all categories in ordinal order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Category maps a label to its category. Speech collapses to Neutral.
func (l Label) Category() Category {
	switch l {
	case LabelHappy:
		return CategoryHappy
	case LabelCalm:
		return CategoryCalm
	case LabelSad:
		return CategorySad
	case LabelTense:
		return CategoryTense
	default:
		return CategoryNeutral
	}
}

// Label returns the classifier label that maps to c.
func (c Category) Label() Label {
	switch c {
	case CategoryHappy:
		return LabelHappy
	case CategoryCalm:
		return LabelCalm
	case CategorySad:
		return LabelSad
	case CategoryTense:
		return LabelTense
	default:
		return LabelNeutral
	}
}

// Ordinal returns the position of c in Categories, or len(Categories) for
// unknown values so they sort last.
func (c Category) Ordinal() int {
	for i, known := range categories {
		if known == c {
			return i
		}
	}
	return len(categories)
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, bool) {
	for _, c := range categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
