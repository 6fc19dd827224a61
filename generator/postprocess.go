package generator

import (
	"bytes"
	"errors"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	stripOnce   sync.Once
	stripPolicy *bluemonday.Policy
)

func textPolicy() *bluemonday.Policy {
	stripOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return stripPolicy
}

// PostProcess 把模型输出整理成纯文本简介：去掉 Markdown/HTML、外层引号与多余空白。
func PostProcess(raw string) (string, error) {
	md := strings.TrimSpace(raw)
	if md == "" {
		return "", errors.New("model returned an empty bio")
	}
	md = stripPreamble(md)

	text, err := mdToText(md)
	if err != nil {
		return "", err
	}
	text = strings.Join(strings.Fields(text), " ")
	text = trimQuotes(text)
	if text == "" {
		return "", errors.New("model returned an empty bio")
	}
	return text, nil
}

// mdToText renders markdown to HTML and strips every tag, so emphasis, links and
// stray inline HTML from the model collapse to their text.
func mdToText(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	// block boundaries become spaces before tags are removed
	rendered := strings.NewReplacer("</p>", " </p>", "<br>", " ", "<br />", " ", "</li>", " </li>", "</h1>", " </h1>", "</h2>", " </h2>").
		Replace(buf.String())
	return html.UnescapeString(textPolicy().Sanitize(rendered)), nil
}

// 模型偶尔会加 "Here's your bio:" 之类的开场白。
func stripPreamble(md string) string {
	lines := strings.SplitN(md, "\n", 2)
	if len(lines) == 2 {
		first := strings.ToLower(strings.TrimSpace(lines[0]))
		if strings.HasSuffix(first, ":") && (strings.HasPrefix(first, "here") || strings.Contains(first, "bio")) {
			return strings.TrimSpace(lines[1])
		}
	}
	return md
}

func trimQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}
