package domain

import "strings"

// Tier is a named subscription level bounding the monthly book-creation
// quota and the per-book chapter ceiling.
type Tier string

const (
	TierExplorer  Tier = "Explorer"
	TierWriter    Tier = "Writer"
	TierAuthor    Tier = "Author"
	TierPublisher Tier = "Publisher"
)

// Unlimited marks a quota dimension with no ceiling.
const Unlimited = -1

type tierLimits struct {
	booksPerMonth  int
	maxChapters    int
	allowanceLabel string
}

var tierTable = map[Tier]tierLimits{
	TierExplorer:  {booksPerMonth: 1, maxChapters: 5, allowanceLabel: "1 book"},
	TierWriter:    {booksPerMonth: 5, maxChapters: 20, allowanceLabel: "5 books"},
	TierAuthor:    {booksPerMonth: 15, maxChapters: Unlimited, allowanceLabel: "15 books"},
	TierPublisher: {booksPerMonth: Unlimited, maxChapters: Unlimited, allowanceLabel: "unlimited books"},
}

// ParseTier resolves a stored tier name, falling back to Explorer for
// anything unrecognized (matches how replenishment treated unknown tiers).
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "writer":
		return TierWriter
	case "author":
		return TierAuthor
	case "publisher":
		return TierPublisher
	default:
		return TierExplorer
	}
}

// BooksPerMonth returns the monthly creation allowance, or Unlimited.
func (t Tier) BooksPerMonth() int {
	return limitsFor(t).booksPerMonth
}

// MaxChapters returns the per-book chapter ceiling, or Unlimited.
func (t Tier) MaxChapters() int {
	return limitsFor(t).maxChapters
}

// AllowanceLabel is the human-readable monthly allowance ("5 books").
func (t Tier) AllowanceLabel() string {
	return limitsFor(t).allowanceLabel
}

func limitsFor(t Tier) tierLimits {
	if l, ok := tierTable[t]; ok {
		return l
	}
	return tierTable[TierExplorer]
}
