package matching

import (
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Category is a canonical kind of provider attribute (phone, npi, dob, ...)
type Category string

const (
	CategoryAddress Category = "address"
	CategoryPhone   Category = "phone"
	CategoryEmail   Category = "email"
	CategoryNPI     Category = "npi"
	CategoryDEA     Category = "dea"
	CategoryLicense Category = "license"
	CategoryName    Category = "name"
	CategoryFirst   Category = "first"
	CategoryLast    Category = "last"
	CategoryZip     Category = "zip"
	CategoryState   Category = "state"
	CategoryCity    Category = "city"
	CategorySSN     Category = "ssn"
	CategoryDOB     Category = "dob"
)

// categoryAliases lists the substrings that identify each category in a label,
// besides the category keyword itself
var categoryAliases = map[Category][]string{
	CategoryAddress: {"street", "addr", "mailing", "physical", "residence", "location"},
	CategoryPhone:   {"tel", "telephone", "mobile", "cell", "contact", "fax"},
	CategoryEmail:   {"e-mail", "mail", "electronic"},
	CategoryNPI:     {"npi number", "national provider", "provider id", "npi #", "npi#"},
	CategoryDEA:     {"dea number", "dea license", "drug enforcement", "dea #", "dea#"},
	CategoryLicense: {"license number", "state license", "medical license", "lic", "license #"},
	CategoryName:    {"full name", "provider name", "physician", "aprn", "nurse"},
	CategoryFirst:   {"first name", "fname", "given name", "first"},
	CategoryLast:    {"last name", "lname", "surname", "family name", "last"},
	CategoryZip:     {"postal", "zipcode", "zip code", "zip"},
	CategoryState:   {"st", "province"},
	CategoryCity:    {"town", "municipality"},
	CategorySSN:     {"social security", "ss#", "ssn", "social"},
	CategoryDOB:     {"date of birth", "birth date", "birthday", "dob"},
}

// organizationKeywords mark PDF fields that ask for practice or employer data,
// which provider records never carry
var organizationKeywords = []string{
	"organization", "clinic", "facility", "hospital", "practice", "group",
	"company", "employer", "business", "entity", "firm", "agency",
	"institution", "corp", "llc", "inc", "pllc",
}

// keywordSet answers "does this label contain any of these keywords" in one
// pass over the lowercased label
type keywordSet struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func newKeywordSet(keywords []string) *keywordSet {
	patterns := make([]string, 0, len(keywords))
	for _, k := range keywords {
		patterns = append(patterns, strings.ToLower(k))
	}
	return &keywordSet{matcher: ahocorasick.NewStringMatcher(patterns)}
}

func (k *keywordSet) containsAny(label string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.matcher.Match([]byte(strings.ToLower(label)))) > 0
}

// CategoryMatcher applies the category boost, the email/phone veto and the
// organization exclusion. The zero value is not usable; use NewCategoryMatcher
type CategoryMatcher struct {
	order        []Category
	categories   map[Category]*keywordSet
	organization *keywordSet
}

var (
	defaultCategoriesOnce sync.Once
	defaultCategories     *CategoryMatcher
)

// DefaultCategoryMatcher returns the shared matcher built from the built-in
// tables. It is safe for concurrent use
func DefaultCategoryMatcher() *CategoryMatcher {
	defaultCategoriesOnce.Do(func() {
		defaultCategories = NewCategoryMatcher(categoryAliases, organizationKeywords)
	})
	return defaultCategories
}

// NewCategoryMatcher compiles alias and exclusion tables. Each category matches
// its own keyword plus its aliases
func NewCategoryMatcher(aliases map[Category][]string, exclusions []string) *CategoryMatcher {
	cm := &CategoryMatcher{
		categories:   make(map[Category]*keywordSet, len(aliases)),
		organization: newKeywordSet(exclusions),
	}
	for cat, list := range aliases {
		keywords := append([]string{string(cat)}, list...)
		cm.categories[cat] = newKeywordSet(keywords)
		cm.order = append(cm.order, cat)
	}
	sort.Slice(cm.order, func(i, j int) bool { return cm.order[i] < cm.order[j] })
	return cm
}

// Categories returns every category whose keywords occur in label
func (cm *CategoryMatcher) Categories(label string) []Category {
	var out []Category
	for _, cat := range cm.order {
		if cm.categories[cat].containsAny(label) {
			out = append(out, cat)
		}
	}
	return out
}

// Matches reports whether label contains the keyword or an alias of cat
func (cm *CategoryMatcher) Matches(cat Category, label string) bool {
	set, ok := cm.categories[cat]
	return ok && set.containsAny(label)
}

// Boosts reports whether some category is present in both labels
func (cm *CategoryMatcher) Boosts(pdfField, providerField string) bool {
	for _, cat := range cm.order {
		set := cm.categories[cat]
		if set.containsAny(pdfField) && set.containsAny(providerField) {
			return true
		}
	}
	return false
}

// Conflicts reports whether pairing the labels would put an email value in a
// phone field or the other way round. A label counts as email when it hits an
// email keyword, and as phone when it hits a phone keyword but no email one, so
// "Contact Email" stays an email field
func (cm *CategoryMatcher) Conflicts(pdfField, providerField string) bool {
	pdfEmail, pdfPhone := cm.contactSide(pdfField)
	provEmail, provPhone := cm.contactSide(providerField)
	return (pdfEmail && provPhone) || (pdfPhone && provEmail)
}

func (cm *CategoryMatcher) contactSide(label string) (email, phone bool) {
	email = cm.Matches(CategoryEmail, label)
	phone = !email && cm.Matches(CategoryPhone, label)
	return email, phone
}

// Excluded reports whether a PDF field asks for organization or facility data
// and must stay out of automatic matching
func (cm *CategoryMatcher) Excluded(pdfField string) bool {
	return cm.organization.containsAny(pdfField)
}
