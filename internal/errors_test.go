package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/frahmantamala/task-dashboard/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	It("matches sentinels through wrapping and WithCause", func() {
		err := fmt.Errorf("delete: %w", internal.ErrTaskNotFound.WithCause(errors.New("no rows")))
		Expect(errors.Is(err, internal.ErrTaskNotFound)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeFalse())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("does not mutate sentinels", func() {
		_ = internal.ErrForbidden.WithCause(errors.New("x"))
		Expect(internal.ErrForbidden.Cause).To(BeNil())
	})

	It("reports the first field message for validation errors", func() {
		Expect(internal.ErrWeakCredential.Error()).To(Equal("Password must be at least 6 characters"))
		Expect(internal.ErrWeakCredential.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("joins every field message in the detailed message", func() {
		err := internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: []internal.ValidationError{
				{Field: "a", Message: "first"},
				{Field: "b", Message: "second"},
			}})
		Expect(err.GetDetailedMessage()).To(Equal("first; second"))
	})

	It("maps transport errors to 502", func() {
		err := internal.NewTransportError("send failed", errors.New("dial tcp"))
		Expect(err.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(err.Error()).To(ContainSubstring("dial tcp"))
	})

	It("hides the cause when marshalled", func() {
		status, body := internal.ErrDuplicateEmail.WithCause(errors.New("pq: 23505")).ToHTTPResponse()
		Expect(status).To(Equal(http.StatusConflict))
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"code":"DUPLICATE_EMAIL"`))
		Expect(string(raw)).NotTo(ContainSubstring("23505"))
	})
})
