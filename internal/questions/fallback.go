package questions

// fallbackByCategory holds canned questions keyed by exact category name.
var fallbackByCategory = map[string][]string{
	"electronics": {
		"What are the technical specifications?",
		"What is the warranty period?",
		"Is it compatible with other devices?",
		"What's included in the box?",
		"What are the power requirements?",
		"How do I set it up?",
		"What are the dimensions and weight?",
		"What are the available colors?",
	},
	"clothing": {
		"What sizes are available?",
		"What material is it made from?",
		"How should I care for this item?",
		"What is the fit like?",
		"What colors are available?",
		"Can I return if it doesn't fit?",
		"Is it suitable for all seasons?",
		"How do I check the size chart?",
	},
	"home": {
		"What are the dimensions?",
		"What materials is it made from?",
		"How easy is it to assemble?",
		"What tools are needed for setup?",
		"How do I clean and maintain it?",
		"What is the weight capacity?",
		"Is installation service available?",
		"What colors/finishes are available?",
	},
	"books": {
		"How many pages does it have?",
		"What genre/category is it?",
		"Who is the target audience?",
		"Is it part of a series?",
		"What format is available?",
		"What language is it written in?",
		"When was it published?",
		"Are there any reviews available?",
	},
	"sports": {
		"What skill level is this for?",
		"What are the dimensions/specifications?",
		"What materials is it made from?",
		"How durable is it?",
		"What accessories are included?",
		"How do I maintain it?",
		"Is it suitable for outdoor use?",
		"What safety features does it have?",
	},
	"toys": {
		"What age group is this suitable for?",
		"Is it safe for children?",
		"What materials is it made from?",
		"Does it require batteries?",
		"How do you clean it?",
		"What skills does it help develop?",
		"Are there any small parts?",
		"Is assembly required?",
	},
}

var genericFallback = []string{
	"What are the main features?",
	"How do I use this product?",
	"What is the return policy?",
	"How long does shipping take?",
	"What are the dimensions?",
	"What materials is it made from?",
	"Is there a warranty?",
	"How do I contact customer support?",
}

// additionalPool pads short question lists, always consumed from the front.
var additionalPool = []string{
	"What is the price range?",
	"Are there bulk discounts available?",
	"How long will this product last?",
	"What makes this different from competitors?",
	"Are there any maintenance requirements?",
	"Can this be customized?",
	"Is technical support available?",
	"What payment methods do you accept?",
}

// Fallback returns the canned questions for category, or the generic list
// when the category is unknown. Matching is case-sensitive.
func Fallback(category string) []string {
	bank, ok := fallbackByCategory[category]
	if !ok {
		bank = genericFallback
	}
	out := make([]string, len(bank))
	copy(out, bank)
	return out
}

// Normalize truncates or pads questions to exactly Count entries.
func Normalize(questions []string) []string {
	out := make([]string, 0, Count)
	for _, q := range questions {
		if len(out) == Count {
			break
		}
		out = append(out, q)
	}
	for i := 0; len(out) < Count; i++ {
		if i < len(additionalPool) {
			out = append(out, additionalPool[i])
			continue
		}
		out = append(out, genericFallback[(i-len(additionalPool))%len(genericFallback)])
	}
	return out
}
