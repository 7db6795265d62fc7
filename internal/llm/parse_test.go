package llm_test

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"opscord.app/pipeline/internal/llm"
	"opscord.app/pipeline/internal/model"
)

var _ = Describe("ExtractJSONObject", func() {
	It("extracts a bare object", func() {
		block, ok := llm.ExtractJSONObject(`{"a":1}`)
		Expect(ok).To(BeTrue())
		Expect(block).To(Equal(`{"a":1}`))
	})

	It("tolerates surrounding prose and markdown fences", func() {
		input := "Here is the analysis:\n```json\n{\"summary\":\"ok\"}\n```\nLet me know!"
		block, ok := llm.ExtractJSONObject(input)
		Expect(ok).To(BeTrue())
		Expect(block).To(Equal(`{"summary":"ok"}`))
	})

	It("balances nested objects", func() {
		input := `text {"a":{"b":{"c":2}},"d":3} trailing {"x":1}`
		block, ok := llm.ExtractJSONObject(input)
		Expect(ok).To(BeTrue())
		Expect(block).To(Equal(`{"a":{"b":{"c":2}},"d":3}`))
	})

	It("ignores braces inside strings", func() {
		input := `{"summary":"uses {braces} and \"quotes\" inside"}`
		block, ok := llm.ExtractJSONObject(input)
		Expect(ok).To(BeTrue())
		Expect(block).To(Equal(input))
	})

	It("reports no object for plain prose", func() {
		_, ok := llm.ExtractJSONObject("no json here")
		Expect(ok).To(BeFalse())
	})

	It("reports no object when the block never closes", func() {
		_, ok := llm.ExtractJSONObject(`{"a": {"b": 1}`)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ParseSummary", func() {
	It("decodes a complete response", func() {
		content := `{"summary":"Adds retry logic","keyChanges":["worker retries"],"risks":["backoff too short"],"recommendations":["add jitter"],"complexity":"high"}`
		s := llm.ParseSummary(content)
		Expect(s.Summary).To(Equal("Adds retry logic"))
		Expect(s.KeyChanges).To(ConsistOf("worker retries"))
		Expect(s.Risks).To(ConsistOf("backoff too short"))
		Expect(s.Recommendations).To(ConsistOf("add jitter"))
		Expect(s.Complexity).To(Equal(model.ComplexityHigh))
	})

	It("defaults missing fields instead of failing", func() {
		s := llm.ParseSummary(`{"summary":"minimal"}`)
		Expect(s.Summary).To(Equal("minimal"))
		Expect(s.KeyChanges).To(BeEmpty())
		Expect(s.Risks).To(BeEmpty())
		Expect(s.Recommendations).To(BeEmpty())
		Expect(s.Complexity).To(Equal(model.ComplexityMedium))
	})

	It("normalizes an invalid complexity", func() {
		s := llm.ParseSummary(`{"summary":"x","complexity":"extreme"}`)
		Expect(s.Complexity).To(Equal(model.ComplexityMedium))
	})

	It("yields an empty summary for unusable output", func() {
		s := llm.ParseSummary("I could not analyze this PR.")
		Expect(s.Summary).To(BeEmpty())
		Expect(s.Complexity).To(Equal(model.ComplexityMedium))
	})
})

var _ = Describe("ParseTriage", func() {
	It("decodes a valid triage", func() {
		tr := llm.ParseTriage(`{"category":"bug","severity":"high"}`)
		Expect(tr.Category).To(Equal("bug"))
		Expect(tr.Severity).To(Equal(model.SeverityHigh))
	})

	It("falls back to question/low on garbage", func() {
		tr := llm.ParseTriage("not json")
		Expect(tr.Category).To(Equal("question"))
		Expect(tr.Severity).To(Equal(model.SeverityLow))
	})

	It("normalizes out-of-vocabulary values", func() {
		tr := llm.ParseTriage(`{"category":"meta","severity":"critical"}`)
		Expect(tr.Category).To(Equal("question"))
		Expect(tr.Severity).To(Equal(model.SeverityLow))
	})
})

var _ = Describe("Truncate", func() {
	It("returns short strings unchanged", func() {
		Expect(llm.Truncate("hello", 10)).To(Equal("hello"))
	})

	It("cuts at the byte limit for ASCII", func() {
		Expect(llm.Truncate("hello world", 5)).To(Equal("hello"))
	})

	It("never splits a multi-byte rune", func() {
		// "héllo": é is two bytes, so a cut at byte 2 lands mid-rune.
		got := llm.Truncate("héllo", 2)
		Expect(got).To(Equal("h"))
		Expect(utf8.ValidString(got)).To(BeTrue())

		got = llm.Truncate("日本語テキスト", 7)
		Expect(utf8.ValidString(got)).To(BeTrue())
		Expect(got).To(Equal("日本"))
	})
})
