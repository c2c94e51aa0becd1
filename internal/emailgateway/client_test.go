package emailgateway_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	emailgatewaytypes "github.com/frahmantamala/task-dashboard/internal/core/datamodel/emailgateway"
	"github.com/frahmantamala/task-dashboard/internal/emailgateway"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEmailGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Email Gateway Suite")
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received []map[string]interface{}
		status   int
		client   *emailgateway.Client
		params   emailgatewaytypes.TemplateParams
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/v1.0/email/send"))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))

			var body map[string]interface{}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			received = append(received, body)
			w.WriteHeader(status)
			_, _ = w.Write([]byte("OK"))
		}))

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		client = emailgateway.NewClient(emailgateway.Config{
			BaseURL:     server.URL + "/",
			ServiceID:   "svc",
			TemplateID:  "tpl",
			PublicKey:   "pub",
			AccessToken: "secret",
			Timeout:     time.Second,
		}, logger)

		params = emailgatewaytypes.TemplateParams{
			ToName:       "Uma",
			ToEmail:      "uma@example.com",
			TaskTitle:    "Ship",
			TaskPriority: "high",
			AssignedBy:   "Lead",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the provider envelope", func() {
		Expect(client.Send(context.Background(), params)).To(Succeed())
		Expect(received).To(HaveLen(1))
		Expect(received[0]).To(HaveKeyWithValue("service_id", "svc"))
		Expect(received[0]).To(HaveKeyWithValue("template_id", "tpl"))
		Expect(received[0]).To(HaveKeyWithValue("user_id", "pub"))
		Expect(received[0]).To(HaveKeyWithValue("accessToken", "secret"))

		tp := received[0]["template_params"].(map[string]interface{})
		Expect(tp).To(HaveKeyWithValue("to_email", "uma@example.com"))
		Expect(tp).To(HaveKeyWithValue("task_priority", "high"))
		Expect(tp).To(HaveKeyWithValue("assigned_by", "Lead"))
	})

	It("treats non-2xx answers as failures", func() {
		status = http.StatusBadRequest
		err := client.Send(context.Background(), params)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("400"))
	})

	It("refuses a request without a recipient", func() {
		params.ToEmail = ""
		Expect(client.Send(context.Background(), params)).NotTo(Succeed())
		Expect(received).To(BeEmpty())
	})

	It("honours context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(client.Send(ctx, params)).NotTo(Succeed())
	})
})
