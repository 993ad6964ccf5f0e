// Package locale holds the UI strings of the prediction form in English and Simplified Chinese.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Each key is also the English text.
const (
	Title         = "Profit Test Tool"
	ProfitLabel   = "module profit"
	Placeholder   = "Type Here"
	PredictButton = "Predict"
	Success       = "profit ratio is %s"
	InvalidProfit = "invalid profit %q: enter a number"
	NotReady      = "model is not loaded"
	OutOfRange    = "profit %q is out of range"
)

var supported = []language.Tag{language.English, language.SimplifiedChinese}

var translations = map[language.Tag]map[string]string{
	language.English: {
		Title:         Title,
		ProfitLabel:   ProfitLabel,
		Placeholder:   Placeholder,
		PredictButton: PredictButton,
		Success:       Success,
		InvalidProfit: InvalidProfit,
		NotReady:      NotReady,
		OutOfRange:    OutOfRange,
	},
	language.SimplifiedChinese: {
		Title:         "利润测试工具",
		ProfitLabel:   "模块利润",
		Placeholder:   "在此输入",
		PredictButton: "预测",
		Success:       "利润占比为%s",
		InvalidProfit: "无效的利润值 %q：请输入数字",
		NotReady:      "模型尚未加载",
		OutOfRange:    "利润值 %q 超出可预测范围",
	},
}

// Catalog resolves a request's language and returns a printer for it.
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	ordered  []language.Tag
	fallback language.Tag
}

// New builds the catalog. defaultLang is used when a request names no supported language.
func New(defaultLang string) (*Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}

	fallback := language.English
	if defaultLang != "" {
		tag, err := language.Parse(defaultLang)
		if err != nil {
			return nil, err
		}
		_, idx, _ := language.NewMatcher(supported).Match(tag)
		fallback = supported[idx]
	}

	ordered := []language.Tag{fallback}
	for _, tag := range supported {
		if tag != fallback {
			ordered = append(ordered, tag)
		}
	}
	return &Catalog{
		builder:  b,
		matcher:  language.NewMatcher(ordered),
		ordered:  ordered,
		fallback: fallback,
	}, nil
}

// Match picks the supported language for an explicit lang choice (may be empty) and an
// Accept-Language header. The explicit choice wins.
func (c *Catalog) Match(lang, acceptLanguage string) language.Tag {
	var tags []language.Tag
	if lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			tags = append(tags, tag)
		}
	}
	if parsed, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.fallback
	}
	return c.ordered[idx]
}

// Printer returns a message printer for tag.
func (c *Catalog) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(c.builder))
}
