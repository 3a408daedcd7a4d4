package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

type ActionType string

const (
	ActionLogOnly        ActionType = "LOG_ONLY"
	ActionEvent          ActionType = "EVENT"
	ActionHTTPRequest    ActionType = "HTTP_REQUEST"
	ActionSIPCall        ActionType = "SIP_CALL"
	ActionExecuteCommand ActionType = "EXECUTE_COMMAND"
)

// Action is one configured response to a verified anomaly. Target carries
// the URL, phone number or command depending on Type.
type Action struct {
	Type        ActionType    `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Target      string        `json:"target,omitempty"`
	Payload     string        `json:"payload,omitempty"`
	Priority    int           `json:"priority"`
	Cooldown    time.Duration `json:"cooldown"`

	lastTriggered time.Time
}

// Dispatcher executes the side-effecting action kinds. Notification
// transports beyond HTTP are logged dispatch records; the transports
// themselves live outside this system.
type Dispatcher struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (d *Dispatcher) Execute(action *Action, cameraID string, result *models.FrameAnalysisResult) error {
	switch action.Type {
	case ActionLogOnly:
		d.logger.Info("Verified anomaly",
			zap.String("camera_id", cameraID),
			zap.String("anomaly_type", result.AnomalyType),
			zap.Float64("score", result.AnomalyScore),
			zap.String("description", result.AnomalyDescription))
		return nil

	case ActionHTTPRequest:
		return d.sendHTTP(action, cameraID, result)

	case ActionSIPCall:
		d.logger.Info("SIP call dispatched",
			zap.String("camera_id", cameraID),
			zap.String("number", action.Target),
			zap.String("anomaly_type", result.AnomalyType))
		return nil

	case ActionExecuteCommand:
		d.logger.Info("Command execution dispatched",
			zap.String("camera_id", cameraID),
			zap.String("command", action.Target))
		return nil

	default:
		return fmt.Errorf("unsupported response action type %s", action.Type)
	}
}

type notification struct {
	CameraID    string                      `json:"camera_id"`
	ActionName  string                      `json:"action_name"`
	Payload     string                      `json:"payload,omitempty"`
	Observation *models.FrameAnalysisResult `json:"observation"`
	SentAt      time.Time                   `json:"sent_at"`
}

func (d *Dispatcher) sendHTTP(action *Action, cameraID string, result *models.FrameAnalysisResult) error {
	body, err := json.Marshal(notification{
		CameraID:    cameraID,
		ActionName:  action.Name,
		Payload:     action.Payload,
		Observation: result,
		SentAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, action.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification target error (status %d): %s",
			resp.StatusCode, string(bodyBytes))
	}

	d.logger.Info("Notification delivered",
		zap.String("camera_id", cameraID),
		zap.String("target", action.Target))
	return nil
}
