package orion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

const (
	entitiesBasePath = "/v2/entities/"
	defaultTimeout   = 30 * time.Second
	defaultRPS       = 10
	defaultListLimit = 1000
)

// Config identifies the context broker and the tenancy names used for each
// entity category.
type Config struct {
	Endpoint string
	Token    string
	Service  string

	RobotServicePath string
	UIServicePath    string
	TokenServicePath string

	RobotType     string
	UIType        string
	TokenType     string
	PlaceType     string
	RoutePlanType string

	ListLimit int
	Timeout   time.Duration
}

// Client is the typed world-model client. It never retries transport
// failures; retry policy belongs to the callers.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	cfg         Config
	logger      *zap.Logger
}

// NewClient creates a world-model client for the given broker config.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRPS), defaultRPS),
		cfg:         cfg,
		logger:      logger,
	}
}

// GetRobot fetches a delivery_robot entity.
func (c *Client) GetRobot(ctx context.Context, robotID string) (*robot.Robot, error) {
	e, err := c.getEntity(ctx, c.cfg.RobotServicePath, c.cfg.RobotType, robotID)
	if err != nil {
		return nil, err
	}
	return decodeRobot(robotID, e), nil
}

// QueryPlaceByName resolves a place name to its entity. The name is expected
// to be unique within the facility.
func (c *Client) QueryPlaceByName(ctx context.Context, name string) (robot.Place, error) {
	e, err := c.queryEntity(ctx, c.cfg.RobotServicePath, c.cfg.PlaceType, "name=="+name)
	if err != nil {
		return robot.Place{}, err
	}
	return decodePlace(e), nil
}

// GetPlace fetches a place entity by id.
func (c *Client) GetPlace(ctx context.Context, placeID string) (robot.Place, error) {
	e, err := c.getEntity(ctx, c.cfg.RobotServicePath, c.cfg.PlaceType, placeID)
	if err != nil {
		return robot.Place{}, err
	}
	return decodePlace(e), nil
}

// ListPlaces fetches every place entity in one bulk list call.
func (c *Client) ListPlaces(ctx context.Context) ([]robot.Place, error) {
	entities, err := c.listEntities(ctx, c.cfg.RobotServicePath, c.cfg.PlaceType)
	if err != nil {
		return nil, err
	}
	places := make([]robot.Place, len(entities))
	for i, e := range entities {
		places[i] = decodePlace(e)
	}
	return places, nil
}

// QueryRoutePlan fetches the route plan keyed by destination, via key and
// robot id.
func (c *Client) QueryRoutePlan(ctx context.Context, destinationID, viaKey, robotID string) (*robot.RoutePlan, error) {
	query := fmt.Sprintf("destination==%s;via==%s;robot_id==%s", destinationID, viaKey, robotID)
	e, err := c.queryEntity(ctx, c.cfg.RobotServicePath, c.cfg.RoutePlanType, query)
	if err != nil {
		return nil, err
	}
	return decodeRoutePlan(e), nil
}

// GetTokenInfo fetches a token entity. A missing entity decodes to the
// unlocked zero state so tokens spring into existence on first reference.
func (c *Client) GetTokenInfo(ctx context.Context, tokenID string) (robot.TokenInfo, error) {
	e, err := c.getEntity(ctx, c.cfg.TokenServicePath, c.cfg.TokenType, tokenID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return robot.TokenInfo{}, nil
		}
		return robot.TokenInfo{}, err
	}
	return decodeTokenInfo(e), nil
}

// UpdateToken writes the full token state. Tokens spring into existence on
// first reference, so a patch against a never-provisioned token falls back
// to creating the entity.
func (c *Client) UpdateToken(ctx context.Context, tokenID string, attrs Attributes) error {
	err := c.patchEntity(ctx, c.cfg.TokenServicePath, c.cfg.TokenType, tokenID, attrs)
	if err != nil && shared.KindOf(err) == shared.KindNotFound {
		return c.createEntity(ctx, c.cfg.TokenServicePath, c.cfg.TokenType, tokenID, attrs)
	}
	return err
}

// PatchRobot patches attributes of a delivery_robot entity.
func (c *Client) PatchRobot(ctx context.Context, robotID string, attrs Attributes) error {
	return c.patchEntity(ctx, c.cfg.RobotServicePath, c.cfg.RobotType, robotID, attrs)
}

// PatchUI patches attributes of a robot_ui entity.
func (c *Client) PatchUI(ctx context.Context, uiID string, attrs Attributes) error {
	return c.patchEntity(ctx, c.cfg.UIServicePath, c.cfg.UIType, uiID, attrs)
}

func (c *Client) getEntity(ctx context.Context, servicePath, entityType, entityID string) (rawEntity, error) {
	if entityID == "" {
		return nil, shared.NewValidationError("invalid entity id")
	}
	endpoint := c.cfg.Endpoint + entitiesBasePath + url.PathEscape(entityID)
	query := url.Values{"type": {entityType}}

	body, err := c.do(ctx, http.MethodGet, endpoint, query, servicePath, nil,
		"can not get an entity from orion")
	if err != nil {
		return nil, err
	}

	var e rawEntity
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, shared.NewValidationError("can not parse result").WithRootCause(err.Error())
	}
	return e, nil
}

func (c *Client) queryEntity(ctx context.Context, servicePath, entityType, q string) (rawEntity, error) {
	endpoint := c.cfg.Endpoint + entitiesBasePath
	query := url.Values{"type": {entityType}, "q": {q}}

	body, err := c.do(ctx, http.MethodGet, endpoint, query, servicePath, nil,
		"can not get entities from orion")
	if err != nil {
		return nil, err
	}

	var entities []rawEntity
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, shared.NewValidationError("can not parse result").WithRootCause(err.Error())
	}
	if len(entities) != 1 {
		return nil, shared.NewValidationError(
			"can not retrieve an entity, entity_type=%s, query=%s", entityType, q)
	}
	return entities[0], nil
}

func (c *Client) listEntities(ctx context.Context, servicePath, entityType string) ([]rawEntity, error) {
	endpoint := c.cfg.Endpoint + entitiesBasePath
	query := url.Values{
		"type":  {entityType},
		"limit": {strconv.Itoa(c.cfg.ListLimit)},
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, query, servicePath, nil,
		"can not get entities from orion")
	if err != nil {
		return nil, err
	}

	var entities []rawEntity
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, shared.NewValidationError("can not parse result").WithRootCause(err.Error())
	}
	return entities, nil
}

func (c *Client) createEntity(ctx context.Context, servicePath, entityType, entityID string, attrs Attributes) error {
	if entityID == "" {
		return shared.NewValidationError("invalid entity id")
	}
	entity := map[string]any{"id": entityID, "type": entityType}
	for name, attr := range attrs {
		entity[name] = attr
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return shared.NewValidationError("can not serialize payload").WithRootCause(err.Error())
	}
	endpoint := c.cfg.Endpoint + entitiesBasePath

	_, err = c.do(ctx, http.MethodPost, endpoint, url.Values{}, servicePath, payload,
		"can not create an entity in orion")
	return err
}

func (c *Client) patchEntity(ctx context.Context, servicePath, entityType, entityID string, attrs Attributes) error {
	if entityID == "" {
		return shared.NewValidationError("invalid entity id")
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return shared.NewValidationError("can not serialize payload").WithRootCause(err.Error())
	}
	endpoint := c.cfg.Endpoint + entitiesBasePath + url.PathEscape(entityID) + "/attrs"
	query := url.Values{"type": {entityType}}

	_, err = c.do(ctx, http.MethodPatch, endpoint, query, servicePath, payload,
		"can not send command to orion")
	return err
}

// do performs one request against the broker. 404 maps to NotFound, other
// non-2xx to Internal with the upstream body as root cause.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, servicePath string, payload []byte, failMessage string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, shared.NewInternalError("rate limiter error").WithRootCause(err.Error())
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?"+query.Encode(), reqBody)
	if err != nil {
		return nil, shared.NewInternalError("can not build orion request").WithRootCause(err.Error())
	}
	req.Header.Set("FIWARE-SERVICE", c.cfg.Service)
	req.Header.Set("FIWARE-SERVICEPATH", servicePath)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "bearer "+c.cfg.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("orion request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("servicepath", servicePath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewInternalError("%s", failMessage).WithRootCause(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NewInternalError("%s", failMessage).WithRootCause(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return nil, shared.NewNotFoundError("%s", failMessage).WithRootCause(string(body))
		}
		return nil, shared.NewInternalError("%s", failMessage).WithRootCause(string(body))
	}
	return body, nil
}
