package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the judge's scored assessment of a session transcript.
type Verdict struct {
	Score           int      `json:"score"`
	GoodPoints      []string `json:"good_points"`
	Mistakes        []string `json:"mistakes"`
	Recommendations string   `json:"recommendations"`
}

const (
	defaultScore       = 5
	placeholderText    = "not specified"
	fallbackVerdictMsg = "evaluation could not be completed"
)

// DefaultVerdict is the fixed fallback returned on every failure path.
func DefaultVerdict() Verdict {
	return Verdict{
		Score:           defaultScore,
		GoodPoints:      []string{fallbackVerdictMsg},
		Mistakes:        []string{fallbackVerdictMsg},
		Recommendations: fallbackVerdictMsg,
	}
}

var (
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// StripCodeFences unwraps the first Markdown code fence if the text contains
// one; otherwise it returns the text unchanged.
func StripCodeFences(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ExtractJSONObject locates the outermost {...} span in free text. It tries
// a greedy regex match first and falls back to the first-'{' / last-'}' pair.
func ExtractJSONObject(s string) (string, bool) {
	if m := jsonObjectRe.FindString(s); m != "" {
		return m, true
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// StripControlChars removes non-printable control characters, keeping the
// whitespace JSON allows.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// stringOrList tolerates a JSON field that is either a single string or a
// list of strings, normalizing to a list.
type stringOrList []string

func (l *stringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = []string{single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

type rawVerdict struct {
	Score           *int         `json:"score"`
	GoodPoints      stringOrList `json:"good_points"`
	Mistakes        stringOrList `json:"mistakes"`
	Recommendations string       `json:"recommendations"`
}

// ParseVerdict runs the full defensive extraction chain over a model reply:
// fence strip, brace-span extraction, control-character strip, JSON parse,
// and field defaulting. The score is clamped to 0-10.
func ParseVerdict(reply string) (Verdict, error) {
	candidate := StripCodeFences(reply)

	object, ok := ExtractJSONObject(candidate)
	if !ok {
		return Verdict{}, errors.New("no JSON object found in reply")
	}
	object = StripControlChars(object)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}

	verdict := Verdict{
		Score:           defaultScore,
		GoodPoints:      raw.GoodPoints,
		Mistakes:        raw.Mistakes,
		Recommendations: raw.Recommendations,
	}
	if raw.Score != nil {
		verdict.Score = clampScore(*raw.Score)
	}
	if verdict.GoodPoints == nil {
		verdict.GoodPoints = []string{}
	}
	if verdict.Mistakes == nil {
		verdict.Mistakes = []string{}
	}
	if strings.TrimSpace(verdict.Recommendations) == "" {
		verdict.Recommendations = placeholderText
	}

	return verdict, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
