// Package locale maps UI intents to the labels the target site renders for
// them in each supported language.
package locale

import "strings"

// Intent identifies a piece of UI whose visible label varies by language.
type Intent int

const (
	// LikeAffirm is the label of a like control that has not been pressed.
	LikeAffirm Intent = iota
	// LikeAlready is the label of a like control that is already pressed.
	LikeAlready
	// PrivateAccount is the notice shown on a private profile.
	PrivateAccount
	// SubmitAction is the text of the comment submit button.
	SubmitAction
	// FollowAffordance is the follow button text that leaks into caption
	// containers.
	FollowAffordance
)

// CanonicalLocale is the locale whose strings Canonical returns.
const CanonicalLocale = "en"

// Locales lists the supported locales in lookup order.
var Locales = []string{"en", "uk", "ru", "de", "fr", "it"}

var table = map[Intent]map[string][]string{
	LikeAffirm: {
		"en": {"like"},
		"uk": {"подобається"},
		"ru": {"нравится"},
		"de": {"gefällt mir"},
		"fr": {"j'aime"},
		"it": {"mi piace"},
	},
	LikeAlready: {
		"en": {"unlike"},
		"uk": {"не подобається"},
		"ru": {"не нравится"},
		"de": {"gefällt mir nicht mehr", "gefällt mir nicht"},
		"fr": {"je n'aime plus"},
		"it": {"non mi piace più"},
	},
	PrivateAccount: {
		"en": {"This Account is Private", "This account is private"},
		"uk": {"Цей обліковий запис приватний"},
		"ru": {"Этот аккаунт закрыт"},
	},
	SubmitAction: {
		"en": {"Post"},
		"uk": {"Опублікувати"},
		"ru": {"Опубликовать"},
	},
	FollowAffordance: {
		"en": {"Follow"},
		"uk": {"Стежити"},
		"ru": {"Подписаться"},
	},
}

// Strings returns every label for the intent across all locales, in locale
// order.
func Strings(intent Intent) []string {
	var out []string
	for _, loc := range Locales {
		out = append(out, table[intent][loc]...)
	}
	return out
}

// Canonical returns the labels for the intent in CanonicalLocale only.
func Canonical(intent Intent) []string {
	return append([]string(nil), table[intent][CanonicalLocale]...)
}

// ContainsAny reports whether text contains any label of the intent.
// The comparison is case-sensitive.
func ContainsAny(intent Intent, text string) bool {
	for _, s := range Strings(intent) {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// ContainsAnyFold is ContainsAny with both sides lowercased.
func ContainsAnyFold(intent Intent, text string) bool {
	lower := strings.ToLower(text)
	for _, s := range Strings(intent) {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// LikeState classifies a like control's accessible label.
type LikeState int

const (
	LikeUnknown LikeState = iota
	LikeUnpressed
	LikePressed
)

// ClassifyLikeLabel reports whether an aria-label belongs to a pressed or
// unpressed like control. Pressed labels are checked first because every
// language's "unlike" contains its "like".
func ClassifyLikeLabel(label string) LikeState {
	switch {
	case ContainsAnyFold(LikeAlready, label):
		return LikePressed
	case ContainsAnyFold(LikeAffirm, label):
		return LikeUnpressed
	default:
		return LikeUnknown
	}
}
