package account

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

// RegisterAccountRoutes mounts the account lifecycle endpoints
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("account-register.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Activate), controller.ActivateGet).
		SetName("account-activate.get")

	app.Post(controller.Routes.ResendActivation, controller.ResendActivationPost).
		SetName("account-resend-activation.post")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("account-login.post")

	app.Post(controller.Routes.VerifyOTP, controller.VerifyOTPPost).
		SetName("account-verify-otp.post")
}

type AccountControllerRoutes struct {
	Register         string
	Activate         string
	ResendActivation string
	Login            string
	VerifyOTP        string
}

type AccountController struct {
	Debug       bool
	Logger      Logger
	Lifecycle   *Lifecycle
	Routes      *AccountControllerRoutes
	PhoneRegion string
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:      defLogger{},
		PhoneRegion: "US",
		Routes: &AccountControllerRoutes{
			Register:         "/auth/register",
			Activate:         "/auth/activate",
			ResendActivation: "/auth/resend-activation",
			Login:            "/auth/login",
			VerifyOTP:        "/auth/login/otp",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Lifecycle == nil {
		panic("Missing Lifecycle in account controller...")
	}

	return c
}

// WithControllerLifecycle wires the lifecycle service
func WithControllerLifecycle(l *Lifecycle) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Lifecycle = l
		return c
	}
}

// WithControllerLogger overrides the logger
func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug toggles payload dumps on requests
func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

// WithControllerPhoneRegion sets the default region used to parse
// phone numbers without a country prefix
func WithControllerPhoneRegion(region string) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if region != "" {
			c.PhoneRegion = region
		}
		return c
	}
}

// RegisterPayload is the registration body
type RegisterPayload struct {
	FirstName        string `form:"first_name" json:"first_name"`
	MiddleName       string `form:"middle_name" json:"middle_name"`
	LastName         string `form:"last_name" json:"last_name"`
	Email            string `form:"email" json:"email"`
	Phone            string `form:"phone_number" json:"phone_number"`
	IDNo             int64  `form:"id_no" json:"id_no"`
	Password         string `form:"password" json:"password"`
	ConfirmPassword  string `form:"confirm_password" json:"confirm_password"`
	SecurityQuestion string `form:"security_question" json:"security_question"`
	SecurityAnswer   string `form:"security_answer" json:"security_answer"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.By(ValidatePhoneNumber(phoneRegion))),
		validation.Field(&r.IDNo, validation.Required, validation.Min(1)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 40)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 40),
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(
			&r.SecurityQuestion,
			validation.Required,
			validation.In(
				QuestionMotherMaidenName,
				QuestionChildhoodFriend,
				QuestionFavoriteColor,
				QuestionBirthCity,
			),
		),
		validation.Field(&r.SecurityAnswer, validation.Required, validation.Length(1, 200)),
	)
}

func (a *AccountController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return a.renderError(ctx, fiber.StatusBadRequest, "Error parsing body", err)
	}

	if err := payload.Validate(a.PhoneRegion); err != nil {
		a.Logger.Error("register validate payload: %v", err)
		return ctx.JSON(fiber.StatusUnprocessableEntity, map[string]any{
			"success":    false,
			"message":    "Error validating payload",
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	record, err := a.Lifecycle.Register(ctx.Context(), RegisterInput{
		Email:            payload.Email,
		FirstName:        payload.FirstName,
		MiddleName:       payload.MiddleName,
		LastName:         payload.LastName,
		Phone:            payload.Phone,
		IDNo:             payload.IDNo,
		Password:         payload.Password,
		SecurityQuestion: payload.SecurityQuestion,
		SecurityAnswer:   payload.SecurityAnswer,
		Role:             RoleCustomer,
	})
	if err != nil {
		// the account exists even when the activation email bounced;
		// report it so the client can point at the resend flow
		if record != nil {
			a.Logger.Warn("register delivered no activation email: %v", err)
			return ctx.JSON(fiber.StatusCreated, map[string]any{
				"success": true,
				"message": "Account registered but the activation email could not be sent. Request a new activation link.",
				"record":  record,
			})
		}
		return a.renderDomainError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"success": true,
		"message": "Account registered. Check your email for the activation link.",
		"record":  record,
	})
}

func (a *AccountController) ActivateGet(ctx router.Context) error {
	tokenString := ctx.Param("token", "")
	if tokenString == "" {
		return a.renderError(ctx, fiber.StatusBadRequest, "Missing activation token", nil)
	}

	record, err := a.Lifecycle.Activate(ctx.Context(), tokenString)
	if err != nil {
		return a.renderDomainError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "Account activated",
		"record":  record,
	})
}

// EmailPayload is the body for flows keyed only on email
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountController) ResendActivationPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("resend activation parse payload: %v", err)
		return a.renderError(ctx, fiber.StatusBadRequest, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusUnprocessableEntity, map[string]any{
			"success":    false,
			"message":    "Error validating payload",
			"validation": err.Error(),
		})
	}

	if err := a.Lifecycle.ResendActivation(ctx.Context(), payload.Email); err != nil {
		return a.renderDomainError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "Activation link sent",
	})
}

// LoginPayload is the first-factor login body
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.renderError(ctx, fiber.StatusBadRequest, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusUnprocessableEntity, map[string]any{
			"success":    false,
			"message":    "Error validating payload",
			"validation": err.Error(),
		})
	}

	if err := a.Lifecycle.RequestLoginOTP(ctx.Context(), payload.Email, payload.Password); err != nil {
		return a.renderDomainError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "OTP sent to your email",
	})
}

// VerifyOTPPayload is the second-factor login body
type VerifyOTPPayload struct {
	Email string `form:"email" json:"email"`
	OTP   string `form:"otp" json:"otp"`
}

// Validate will validate the payload
func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *AccountController) VerifyOTPPost(ctx router.Context) error {
	payload := new(VerifyOTPPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("verify otp parse payload: %v", err)
		return a.renderError(ctx, fiber.StatusBadRequest, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusUnprocessableEntity, map[string]any{
			"success":    false,
			"message":    "Error validating payload",
			"validation": err.Error(),
		})
	}

	record, err := a.Lifecycle.VerifyLoginOTP(ctx.Context(), payload.Email, payload.OTP)
	if err != nil {
		return a.renderDomainError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"record":  record,
	})
}

func (a *AccountController) renderError(ctx router.Context, status int, message string, err error) error {
	body := map[string]any{
		"success": false,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	return ctx.JSON(status, body)
}

// renderDomainError maps lifecycle errors onto HTTP statuses using the
// code the error was built with; unknown shapes become a 500 without
// leaking their message
func (a *AccountController) renderDomainError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		a.Logger.Error("unexpected lifecycle error: %v", err)
		return a.renderError(ctx, fiber.StatusInternalServerError, "Internal error", nil)
	}

	status := int(richErr.Code)
	if status < fiber.StatusBadRequest || status > 599 {
		status = fiber.StatusInternalServerError
	}

	body := map[string]any{
		"success":   false,
		"message":   richErr.Message,
		"text_code": richErr.TextCode,
	}

	if minutes, ok := LockoutRemainingMinutes(err); ok {
		body["lockout_remaining_minutes"] = minutes
	}

	return ctx.JSON(status, body)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber checks the value parses as a dialable number,
// using region for numbers without a country prefix
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}

		parsed, err := phonenumbers.Parse(s, region)
		if err != nil {
			return errors.New("must be a valid phone number")
		}

		if !phonenumbers.IsValidNumber(parsed) {
			return errors.New("must be a valid phone number")
		}

		return nil
	}
}
