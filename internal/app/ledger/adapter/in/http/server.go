package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
)

// Server is the HTTP controller layer over the transfer coordinator. It
// holds no ledger logic: it parses requests, hands them to the
// coordinator and maps the error taxonomy to status codes.
type Server struct {
	core   *usecase.TransferCoordinator
	logger *zap.Logger
}

func NewServer(core *usecase.TransferCoordinator, logger *zap.Logger) *Server {
	return &Server{core: core, logger: logger}
}

// Register mounts the routes under /v1/api. Role checks (who may credit,
// who may transfer) belong to the authorization proxy in front of this
// service.
func (s *Server) Register(app *fiber.App, resolver *identity.Resolver) {
	api := app.Group("/v1/api")

	api.Post("/signup", s.signup)
	api.Post("/credit-acct", s.credit)
	api.Post("/transfer", CallerIdentity(resolver), IdempotencyKey(), s.transfer)
	api.Get("/balance/:number", CallerIdentity(resolver), s.balance)
}

type signupRequest struct {
	OwnerID     string `json:"owner_id"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	acct, err := s.core.OpenAccount(c.Context(), req.OwnerID, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidExternalID):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid phone number"})
		case errors.Is(err, domain.ErrAccountAlreadyExists):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Account already exists"})
		default:
			return s.internal(c, "signup", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Account created successfully",
		"account_number": acct.Number,
	})
}

type creditRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
}

func (s *Server) credit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	if req.AccountNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Account number must be provided"})
	}

	acct, err := s.core.Credit(c.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid credit amount"})
		case errors.Is(err, domain.ErrAccountNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account number"})
		case errors.Is(err, domain.ErrTransient):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Transaction error, please try again"})
		default:
			return s.internal(c, "credit", err)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Transaction Successful",
		"balance": domain.FormatAmount(acct.Balance),
	})
}

type transferRequest struct {
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Remarks string `json:"remarks"`
}

func (s *Server) transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}

	from, _ := c.Locals(localCallerAccount).(string)
	idempotencyKey, _ := c.Locals(localIdempotencyKey).(string)

	rec, err := s.core.Transfer(c.Context(), from, req.To, req.Amount, req.Remarks, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSameAccount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Cannot transfer to the same account number"})
		case errors.Is(err, domain.ErrInvalidAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid transfer amount"})
		case errors.Is(err, domain.ErrAccountNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account number"})
		case errors.Is(err, domain.ErrInsufficientBalance):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Insufficient account balance"})
		case errors.Is(err, domain.ErrTransient):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Transaction error, please try again"})
		case errors.Is(err, domain.ErrCompensationFailed):
			// Funds are debited but unrestored; reconciliation is manual.
			// Never present this as retryable.
			return s.internal(c, "transfer", err)
		default:
			return s.internal(c, "transfer", err)
		}
	}

	return c.JSON(fiber.Map{
		"message":   "Transaction Successful",
		"reference": rec.ID.String(),
	})
}

func (s *Server) balance(c *fiber.Ctx) error {
	number := c.Params("number")
	caller, _ := c.Locals(localCallerAccount).(string)
	if caller != number {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Access denied"})
	}

	acct, err := s.core.GetBalance(c.Context(), number)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Invalid account number"})
		}
		return s.internal(c, "balance", err)
	}

	return c.JSON(fiber.Map{
		"account_number": acct.Number,
		"balance":        domain.FormatAmount(acct.Balance),
	})
}

func (s *Server) internal(c *fiber.Ctx, op string, err error) error {
	s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal error"})
}
