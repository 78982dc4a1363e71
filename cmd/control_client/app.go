package controlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"geotrack/internal/cli"
	"geotrack/internal/general/config"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/rabbitmq"
	"geotrack/internal/general/websocket"
)

const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportAMQP = "amqp"
)

// Options selects how a single command is delivered to the tracker.
type Options struct {
	ConfigPath string
	Transport  string
	Method     string
	Addr       string
	Token      string
	Timeout    time.Duration
}

// ErrMethodFailed is returned when the tracker answered with an error result.
var ErrMethodFailed = errors.New("method call failed")

// Run sends one method call, prints the result as JSON to out and
// returns ErrMethodFailed if the result carries an error.
func Run(ctx context.Context, opts Options, out io.Writer) error {
	logger := logger.New("control-client")
	defer func() { _ = logger.Sync() }()
	ctx = logger.WithRequestID(ctx, "control-001")

	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if opts.Addr == "" {
		opts.Addr = fmt.Sprintf("localhost:%d", cfg.Services.TrackerServicePort)
	}

	token := opts.Token
	if token == "" && opts.Transport != TransportAMQP {
		if token, _, err = cli.MintBridgeToken(cfg.JWT.SecretKey, "", "", time.Hour); err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
	}

	var res contracts.MethodResult
	switch opts.Transport {
	case TransportHTTP, "":
		res, err = callHTTP(ctx, "http://"+opts.Addr+"/v1/channel", token, opts.Method)
	case TransportWS:
		res, err = websocket.Call(ctx, "ws://"+opts.Addr+"/ws/channel", token, opts.Method)
	case TransportAMQP:
		res, err = callAMQP(ctx, cfg, logger, opts.Method)
	default:
		return fmt.Errorf("unknown transport %q", opts.Transport)
	}
	if err != nil {
		logger.Error(ctx, "call_failed", "Command channel call failed", err, map[string]any{
			"transport": opts.Transport,
			"method":    opts.Method,
		})
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	if !res.OK() {
		return fmt.Errorf("%w: %s: %s", ErrMethodFailed, res.Error.Code, res.Error.Message)
	}
	return nil
}

func callHTTP(ctx context.Context, url, token, method string) (contracts.MethodResult, error) {
	body, err := json.Marshal(contracts.MethodCall{Method: method})
	if err != nil {
		return contracts.MethodResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return contracts.MethodResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return contracts.MethodResult{}, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return contracts.MethodResult{}, fmt.Errorf("post %s: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}

	var res contracts.MethodResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return contracts.MethodResult{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func callAMQP(ctx context.Context, cfg *config.Config, logger *logger.Logger, method string) (contracts.MethodResult, error) {
	client, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		return contracts.MethodResult{}, err
	}
	defer client.Close()

	body, err := json.Marshal(contracts.MethodCall{Method: method})
	if err != nil {
		return contracts.MethodResult{}, err
	}

	reply, err := client.Call(ctx, contracts.QueueTrackingCommands, body)
	if err != nil {
		return contracts.MethodResult{}, err
	}

	var res contracts.MethodResult
	if err := json.Unmarshal(reply, &res); err != nil {
		return contracts.MethodResult{}, fmt.Errorf("decode reply: %w", err)
	}
	return res, nil
}
