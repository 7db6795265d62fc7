package service_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"opscord.app/pipeline/internal/model"
	"opscord.app/pipeline/internal/service"
)

var _ = Describe("ParseWebhook", func() {
	It("detects a pull request from the payload shape", func() {
		parsed, err := service.ParseWebhook(json.RawMessage(prOpenedBody(42)))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Kind).To(Equal(model.EventKindPullRequest))
		Expect(parsed.Action).To(Equal("opened"))
		Expect(parsed.Number).To(Equal(int64(42)))
		Expect(parsed.RepoFullName).To(Equal("acme/widgets"))
		Expect(*parsed.Title).To(Equal("Add retry backoff"))
		Expect(*parsed.State).To(Equal("open"))
		Expect(*parsed.Author).To(Equal("octocat"))
		Expect(parsed.ChangedFiles).To(Equal(12))
	})

	It("detects an issue from the payload shape", func() {
		body := json.RawMessage(`{
			"action": "closed",
			"issue": {"number": 7, "title": "Crash", "state": "closed", "user": {"login": "reporter"}},
			"repository": {"full_name": "acme/widgets"}
		}`)
		parsed, err := service.ParseWebhook(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Kind).To(Equal(model.EventKindIssue))
		Expect(parsed.Number).To(Equal(int64(7)))
		Expect(parsed.Body).To(BeNil())
	})

	Describe("push payloads", func() {
		body := func(after string) json.RawMessage {
			return json.RawMessage(`{
				"ref": "refs/heads/feature/retries",
				"after": "` + after + `",
				"commits": [{"id": "a"}, {"id": "b"}],
				"pusher": {"name": "octocat"},
				"repository": {"full_name": "acme/widgets"}
			}`)
		}

		It("extracts the branch and commit count", func() {
			parsed, err := service.ParseWebhook(body("a1b2c3"))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Kind).To(Equal(model.EventKindPush))
			Expect(parsed.Branch).To(Equal("feature/retries"))
			Expect(parsed.CommitCount).To(Equal(2))
			Expect(parsed.Number).To(BeNumerically(">", 0))
		})

		It("derives the same natural key for a redelivered push", func() {
			first, err := service.ParseWebhook(body("a1b2c3"))
			Expect(err).NotTo(HaveOccurred())
			second, err := service.ParseWebhook(body("a1b2c3"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Number).To(Equal(first.Number))

			other, err := service.ParseWebhook(body("d4e5f6"))
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Number).NotTo(Equal(first.Number))
		})
	})

	It("rejects payloads without a repository", func() {
		_, err := service.ParseWebhook(json.RawMessage(`{"action":"opened","pull_request":{"number":1}}`))
		Expect(err).To(HaveOccurred())
	})

	It("flags unrecognized shapes as unsupported", func() {
		_, err := service.ParseWebhook(json.RawMessage(`{"zen":"Keep it simple.","repository":{"full_name":"acme/widgets"}}`))
		Expect(err).To(MatchError(service.ErrUnsupportedEvent))
	})

	It("rejects invalid JSON", func() {
		_, err := service.ParseWebhook(json.RawMessage(`{not json`))
		Expect(err).To(HaveOccurred())
	})
})
