package endpoint

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/psicoagenda/backend/util"
)

var mailSender util.MailSender = util.NewSMTPSender()

// SetMailSenderForTesting swaps the SMTP sender for a recorder in tests.
func SetMailSenderForTesting(s util.MailSender) {
	mailSender = s
}

type ContactRequest struct {
	Nombre  string `json:"nombre" example:"Ana García"`
	Email   string `json:"email" example:"ana@example.com"`
	Asunto  string `json:"asunto,omitempty" example:"Consulta sobre horarios"`
	Mensaje string `json:"mensaje" example:"¿Atienden los sábados?"`
}

// ContactForm godoc
// @Summary      Contact form
// @Description  Forward a contact-form submission to the clinic inbox
// @Tags         Contact
// @Accept       json
// @Produce      json
// @Param        request body ContactRequest true "Message"
// @Success      200 {object} util.APIResponse "Message sent"
// @Failure      400 {object} util.APIResponse "Validation failure"
// @Failure      500 {object} util.APIResponse "Delivery failure"
// @Router       /contact [post]
func ContactForm(c *gin.Context) {
	var req ContactRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	req.Nombre = util.NormalizeName(req.Nombre)
	switch {
	case req.Nombre == "":
		util.CallUserError(c, util.APIErrorParams{Msg: "El nombre es obligatorio.", Err: fmt.Errorf("missing name")})
		return
	case !emailPattern.MatchString(req.Email):
		util.CallUserError(c, util.APIErrorParams{Msg: "El correo electrónico no es válido.", Err: fmt.Errorf("invalid email")})
		return
	case req.Mensaje == "":
		util.CallUserError(c, util.APIErrorParams{Msg: "El mensaje es obligatorio.", Err: fmt.Errorf("missing message")})
		return
	}

	err := mailSender.SendContactMessage(util.ContactMessage{
		Name:    req.Nombre,
		Email:   req.Email,
		Subject: req.Asunto,
		Body:    req.Mensaje,
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "No se pudo enviar el mensaje", Err: fmt.Errorf("mail delivery failed")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Mensaje enviado"})
}
