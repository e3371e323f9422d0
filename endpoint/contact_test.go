package endpoint

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psicoagenda/backend/util"
)

// recordingMailSender captures outgoing messages instead of dialing SMTP.
type recordingMailSender struct {
	sent    []util.ContactMessage
	failure error
}

func (r *recordingMailSender) SendContactMessage(msg util.ContactMessage) error {
	if r.failure != nil {
		return r.failure
	}
	r.sent = append(r.sent, msg)
	return nil
}

func withRecordingSender(t *testing.T) *recordingMailSender {
	t.Helper()
	recorder := &recordingMailSender{}
	SetMailSenderForTesting(recorder)
	t.Cleanup(func() { SetMailSenderForTesting(util.NewSMTPSender()) })
	return recorder
}

func TestContactForm_Success(t *testing.T) {
	r, _ := setupEndpointTest(t)
	recorder := withRecordingSender(t)

	w, response, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodPost, registerPath: "/contact", requestPath: "/contact",
		handler: ContactForm,
		body: map[string]interface{}{
			"nombre":  "  Ana   García ",
			"email":   "ana@example.com",
			"asunto":  "Consulta sobre horarios",
			"mensaje": "¿Atienden los sábados?",
		},
	})
	assert.NoError(t, err)
	assertSuccessResponse(t, w, response)

	assert.Len(t, recorder.sent, 1)
	// Name is normalized before it reaches the outgoing mail.
	assert.Equal(t, "Ana García", recorder.sent[0].Name)
	assert.Equal(t, "ana@example.com", recorder.sent[0].Email)
	assert.Equal(t, "¿Atienden los sábados?", recorder.sent[0].Body)
}

func TestContactForm_Validation(t *testing.T) {
	cases := []struct {
		name    string
		body    map[string]interface{}
		wantMsg string
	}{
		{
			name:    "missing name",
			body:    map[string]interface{}{"email": "ana@example.com", "mensaje": "Hola"},
			wantMsg: "El nombre es obligatorio.",
		},
		{
			name:    "invalid email",
			body:    map[string]interface{}{"nombre": "Ana", "email": "no-es-correo", "mensaje": "Hola"},
			wantMsg: "El correo electrónico no es válido.",
		},
		{
			name:    "missing message",
			body:    map[string]interface{}{"nombre": "Ana", "email": "ana@example.com"},
			wantMsg: "El mensaje es obligatorio.",
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := setupEndpointTest(t)
			recorder := withRecordingSender(t)

			path := fmt.Sprintf("/contact-%d", i)
			w, response, err := doRequestWithHandler(r, requestSpec{
				method: http.MethodPost, registerPath: path, requestPath: path,
				handler: ContactForm, body: tc.body,
			})
			assert.NoError(t, err)
			assertStatus(t, w, http.StatusBadRequest)
			assert.Equal(t, tc.wantMsg, response["msg"])
			assert.Empty(t, recorder.sent)
		})
	}
}

func TestContactForm_DeliveryFailure(t *testing.T) {
	r, _ := setupEndpointTest(t)
	recorder := withRecordingSender(t)
	recorder.failure = fmt.Errorf("smtp unreachable")

	w, response, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodPost, registerPath: "/contact", requestPath: "/contact",
		handler: ContactForm,
		body: map[string]interface{}{
			"nombre":  "Ana",
			"email":   "ana@example.com",
			"mensaje": "Hola",
		},
	})
	assert.NoError(t, err)
	assertStatus(t, w, http.StatusInternalServerError)
	assert.False(t, response["success"].(bool))
}
