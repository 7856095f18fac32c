package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

// LoginState is a step of the QR code login
type LoginState string

const (
	LoginStateFetchingToken  LoginState = "FETCHING_TOKEN"
	LoginStateFetchingQRCode LoginState = "FETCHING_QRCODE"
	LoginStatePollingStatus  LoginState = "POLLING_STATUS"
	LoginStateAuthenticated  LoginState = "AUTHENTICATED"
	LoginStateExpired        LoginState = "EXPIRED"
)

// DefaultPollInterval is the wait between two login status checks
const DefaultPollInterval = 2 * time.Second

const statusOK = 200

// LoginConfig configures the login use case
type LoginConfig struct {
	BaseURL      string
	PollInterval time.Duration
}

type loginUseCase struct {
	transport interfaces.Transport
	scraper   interfaces.PageScraper
	renderer  interfaces.QRCodeRenderer
	endpoints endpoints
	interval  time.Duration
}

// NewLogin creates a new instance of LoginUseCase
func NewLogin(
	transport interfaces.Transport,
	scraper interfaces.PageScraper,
	renderer interfaces.QRCodeRenderer,
	cfg LoginConfig,
) interfaces.LoginUseCase {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &loginUseCase{
		transport: transport,
		scraper:   scraper,
		renderer:  renderer,
		endpoints: newEndpoints(cfg.BaseURL),
		interval:  cfg.PollInterval,
	}
}

// Login authenticates the transport session with a QR code. An expired code
// is replaced by a fresh one until the user confirms the login. Transport
// failures are retried every poll interval.
func (uc *loginUseCase) Login(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	logger.Debug("Login state", "state", LoginStateFetchingToken)
	session, err := uc.fetchToken(ctx)
	if err != nil {
		return err
	}

	for {
		logger.Debug("Login state", "state", LoginStateFetchingQRCode)
		if err := uc.showQRCode(ctx, session); err != nil {
			if ctx.Err() != nil || !goerr.HasTag(err, types.ErrTagTransport) {
				return err
			}
			logger.Warn("Failed to fetch QR code, retrying", "error", err)
			if err := uc.wait(ctx); err != nil {
				return err
			}
			continue
		}

		logger.Debug("Login state", "state", LoginStatePollingStatus, "session", session)
		state, err := uc.poll(ctx, session)
		if err != nil {
			return err
		}

		if state == LoginStateAuthenticated {
			logger.Info("Logged in")
			return nil
		}
		logger.Info("QR code expired, requesting a new one")
	}
}

func (uc *loginUseCase) fetchToken(ctx context.Context) (*model.Session, error) {
	page, err := uc.transport.Get(ctx, uc.endpoints.landing())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch landing page", goerr.T(types.ErrTagFatal))
	}

	token, err := uc.scraper.CSRFToken(page)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract csrf token", goerr.T(types.ErrTagFatal))
	}

	return &model.Session{CSRFToken: token}, nil
}

func (uc *loginUseCase) showQRCode(ctx context.Context, session *model.Session) error {
	imageURL := uc.endpoints.qrCodeImage(session.CSRFToken)
	body, err := uc.transport.Get(ctx, imageURL)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch QR code info")
	}

	var info model.QRCodeImage
	if err := json.Unmarshal(body, &info); err != nil {
		return goerr.Wrap(err, "failed to decode QR code info", goerr.T(types.ErrTagParse))
	}
	if info.Code == nil || info.URL == nil || info.Token == nil {
		return goerr.New("incomplete QR code info", goerr.V("body", string(body)), goerr.T(types.ErrTagParse))
	}
	if *info.Code != statusOK {
		return goerr.New("QR code info returned error code", goerr.V("code", *info.Code), goerr.T(types.ErrTagParse))
	}
	session.QRToken = *info.Token

	picture, err := uc.transport.Get(ctx, uc.endpoints.qrCodePicture(*info.URL))
	if err != nil {
		return goerr.Wrap(err, "failed to fetch QR code image")
	}

	if err := uc.renderer.Render(ctx, picture); err != nil {
		return goerr.Wrap(err, "failed to show QR code")
	}
	return nil
}

// poll checks the login status every interval until it is confirmed or expired
func (uc *loginUseCase) poll(ctx context.Context, session *model.Session) (LoginState, error) {
	logger := ctxlog.From(ctx)

	for {
		status, err := uc.checkStatus(ctx, session)
		switch {
		case err == nil:
			if status.IsAuthenticated() {
				return LoginStateAuthenticated, nil
			}
			if !status.IsPending() {
				logger.Debug("Login state", "state", LoginStateExpired, "status", int(status))
				return LoginStateExpired, nil
			}
		case ctx.Err() == nil && goerr.HasTag(err, types.ErrTagTransport):
			logger.Warn("Failed to check login status, retrying", "error", err)
		default:
			return "", err
		}

		if err := uc.wait(ctx); err != nil {
			return "", err
		}
	}
}

func (uc *loginUseCase) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "login interrupted")
	case <-time.After(uc.interval):
		return nil
	}
}

func (uc *loginUseCase) checkStatus(ctx context.Context, session *model.Session) (model.QRCodeStatus, error) {
	body, err := uc.transport.Get(ctx, uc.endpoints.qrCodeCheck(session.QRToken, session.CSRFToken))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to fetch login status")
	}

	var check model.QRCodeCheck
	if err := json.Unmarshal(body, &check); err != nil {
		return 0, goerr.Wrap(err, "failed to decode login status", goerr.T(types.ErrTagParse))
	}
	if check.Code == nil || check.Status == nil {
		return 0, goerr.New("incomplete login status", goerr.V("body", string(body)), goerr.T(types.ErrTagParse))
	}
	if *check.Code != statusOK {
		return 0, goerr.New("login status returned error code", goerr.V("code", *check.Code), goerr.T(types.ErrTagParse))
	}

	return model.QRCodeStatus(*check.Status), nil
}
