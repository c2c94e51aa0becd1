package internal_test

import (
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Database: internal.DatabaseConfig{Source: "postgres://localhost/tasks", MaxOpenConns: 10, MaxIdleConns: 2},
		Security: internal.SecurityConfig{
			AccessTokenSecret:  strings.Repeat("a", 32),
			RefreshTokenSecret: strings.Repeat("b", 32),
		},
		Storage: internal.StorageConfig{Dir: "/tmp/storage"},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	It("accepts a complete config", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	It("applies notification and storage defaults", func() {
		cfg := validConfig()
		Expect(cfg.Notification.FromName).To(Equal(internal.DefaultFromName))
		Expect(cfg.Notification.ReplyTo).To(Equal(internal.DefaultReplyTo))
		Expect(cfg.Storage.Bucket).To(Equal("profile"))
		Expect(cfg.Storage.MaxBytes).To(Equal(int64(5 * 1024 * 1024)))
	})

	It("rejects short or shared token secrets", func() {
		cfg := validConfig()
		cfg.Security.RefreshTokenSecret = cfg.Security.AccessTokenSecret
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("must differ")))
	})

	It("requires provider identifiers only when email is enabled", func() {
		cfg := validConfig()
		cfg.Notification.Enabled = true
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("notification config")))

		cfg.Notification.ServiceID = "service_8be88rh"
		cfg.Notification.TemplateID = "template_zb53h7d"
		cfg.Notification.PublicKey = "pk"
		Expect(cfg.Validate()).To(Succeed())
	})

	It("reads container settings from the environment", func() {
		os.Setenv("EMAIL_TIMEOUT", "3s")
		os.Setenv("DIRECTORY_REVOKE_IDENTITY_ON_DELETE", "true")
		DeferCleanup(func() {
			os.Unsetenv("EMAIL_TIMEOUT")
			os.Unsetenv("DIRECTORY_REVOKE_IDENTITY_ON_DELETE")
		})

		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.Notification.Timeout).To(Equal(3 * time.Second))
		Expect(cfg.Directory.RevokeIdentityOnDelete).To(BeTrue())
		Expect(cfg.Storage.Bucket).To(Equal("profile"))
	})
})
