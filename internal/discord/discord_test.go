package discord_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"opscord.app/pipeline/internal/discord"
	"opscord.app/pipeline/internal/model"
)

type fakeDoer struct {
	lastReq *http.Request
	status  int
	body    string
	err     error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

var _ = Describe("Client", func() {
	var (
		doer   *fakeDoer
		client *discord.Client
	)

	BeforeEach(func() {
		doer = &fakeDoer{status: http.StatusOK, body: `{"id":"99887766"}`}
		client = discord.NewClientWithDoer(doer, "https://example.test/api/v10")
	})

	It("posts to the channel messages endpoint with bot auth", func() {
		id, err := client.SendMessage(context.Background(), "123456", "tok-abc", discord.Message{
			Embeds: []discord.Embed{{Title: "hello"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("99887766"))

		Expect(doer.lastReq.Method).To(Equal(http.MethodPost))
		Expect(doer.lastReq.URL.String()).To(Equal("https://example.test/api/v10/channels/123456/messages"))
		Expect(doer.lastReq.Header.Get("Authorization")).To(Equal("Bot tok-abc"))
		Expect(doer.lastReq.Header.Get("Content-Type")).To(Equal("application/json"))

		sent, err := io.ReadAll(doer.lastReq.Body)
		Expect(err).NotTo(HaveOccurred())
		var payload map[string]any
		Expect(json.Unmarshal(sent, &payload)).To(Succeed())
		Expect(payload).To(HaveKey("embeds"))
		Expect(payload).NotTo(HaveKey("content"))
	})

	It("surfaces the API error message on non-2xx", func() {
		doer.status = http.StatusForbidden
		doer.body = `{"code":50001,"message":"Missing Access"}`

		_, err := client.SendMessage(context.Background(), "123456", "tok-abc", discord.Message{Content: "x"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("403"))
		Expect(err.Error()).To(ContainSubstring("Missing Access"))
	})

	It("reports a bare status when the error body is not JSON", func() {
		doer.status = http.StatusBadGateway
		doer.body = "<html>upstream</html>"

		_, err := client.SendMessage(context.Background(), "123456", "tok-abc", discord.Message{Content: "x"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("502"))
	})
})

var _ = Describe("Embed builders", func() {
	It("assembles a PR summary embed with section bullets", func() {
		summary := &model.PRSummary{
			Summary:         "Reworks the retry loop.",
			KeyChanges:      []string{"bounded backoff"},
			Risks:           []string{"longer tail latency"},
			Recommendations: []string{"add jitter"},
			Complexity:      model.ComplexityHigh,
		}
		embed := discord.PRSummaryEmbed(42, "Retry rework", "octocat", summary)

		Expect(embed.Title).To(Equal("PR #42: Retry rework"))
		Expect(embed.Description).To(ContainSubstring("Reworks the retry loop."))
		Expect(embed.Description).To(ContainSubstring("**Key Changes**"))
		Expect(embed.Description).To(ContainSubstring("- bounded backoff"))
		Expect(embed.Description).To(ContainSubstring("**Risks**"))
		Expect(embed.Description).To(ContainSubstring("**Recommendations**"))
		Expect(embed.Fields).To(ContainElement(discord.EmbedField{Name: "Complexity", Value: "high", Inline: true}))
		Expect(embed.Footer).NotTo(BeNil())
	})

	It("omits empty sections from the PR summary", func() {
		embed := discord.PRSummaryEmbed(7, "Tiny fix", "", &model.PRSummary{
			Summary:    "One-line fix.",
			Complexity: model.ComplexityLow,
		})
		Expect(embed.Description).NotTo(ContainSubstring("Key Changes"))
		Expect(embed.Description).NotTo(ContainSubstring("Risks"))
		Expect(embed.Fields).To(ContainElement(discord.EmbedField{Name: "Author", Value: "unknown", Inline: true}))
	})

	It("assembles an issue triage embed", func() {
		embed := discord.IssueTriageEmbed(9, "Crash on start", "octocat", &model.IssueTriage{
			Category: "bug",
			Severity: model.SeverityHigh,
		})
		Expect(embed.Title).To(Equal("Issue #9: Crash on start"))
		Expect(embed.Description).To(ContainSubstring("**bug**"))
		Expect(embed.Fields).To(ContainElement(discord.EmbedField{Name: "Severity", Value: "high", Inline: true}))
	})

	It("pluralizes push commit counts", func() {
		one := discord.PushEmbed("acme/widgets", "main", 1)
		Expect(one.Description).To(ContainSubstring("1 commit pushed"))

		many := discord.PushEmbed("acme/widgets", "main", 3)
		Expect(many.Description).To(ContainSubstring("3 commits pushed"))
	})
})
