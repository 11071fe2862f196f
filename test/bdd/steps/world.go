package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/domain/robot"
)

// worldStore is an in-memory stand-in for the world-model broker. Robots
// are queues of snapshots so a scenario can script how an entity evolves
// between reads; the last snapshot repeats.
type worldStore struct {
	robots  map[string][]*robot.Robot
	places  map[string]robot.Place
	plans   map[string]*robot.RoutePlan
	tokens  map[string]robot.TokenInfo
	patches map[string][]orion.Attributes
}

func newWorldStore() *worldStore {
	return &worldStore{
		robots:  map[string][]*robot.Robot{},
		places:  map[string]robot.Place{},
		plans:   map[string]*robot.RoutePlan{},
		tokens:  map[string]robot.TokenInfo{},
		patches: map[string][]orion.Attributes{},
	}
}

func (s *worldStore) pushRobot(r *robot.Robot) {
	s.robots[r.ID] = append(s.robots[r.ID], r)
}

func (s *worldStore) GetRobot(_ context.Context, robotID string) (*robot.Robot, error) {
	queue := s.robots[robotID]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no snapshot scripted for robot %s", robotID)
	}
	r := queue[0]
	if len(queue) > 1 {
		s.robots[robotID] = queue[1:]
	}
	return r, nil
}

func (s *worldStore) QueryPlaceByName(_ context.Context, name string) (robot.Place, error) {
	for _, p := range s.places {
		if p.Name == name {
			return p, nil
		}
	}
	return robot.Place{}, fmt.Errorf("no place named %s", name)
}

func (s *worldStore) GetPlace(_ context.Context, placeID string) (robot.Place, error) {
	p, ok := s.places[placeID]
	if !ok {
		return robot.Place{}, fmt.Errorf("no place %s", placeID)
	}
	return p, nil
}

func (s *worldStore) ListPlaces(context.Context) ([]robot.Place, error) {
	out := make([]robot.Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	return out, nil
}

func (s *worldStore) QueryRoutePlan(_ context.Context, destinationID, viaKey, robotID string) (*robot.RoutePlan, error) {
	key := destinationID + "|" + viaKey + "|" + robotID
	plan, ok := s.plans[key]
	if !ok {
		return &robot.RoutePlan{}, nil
	}
	return plan, nil
}

func (s *worldStore) GetTokenInfo(_ context.Context, tokenID string) (robot.TokenInfo, error) {
	return s.tokens[tokenID], nil
}

func (s *worldStore) UpdateToken(_ context.Context, tokenID string, attrs orion.Attributes) error {
	s.tokens[tokenID] = tokenFromAttrs(attrs)
	return nil
}

func (s *worldStore) PatchRobot(_ context.Context, robotID string, attrs orion.Attributes) error {
	s.patches[robotID] = append(s.patches[robotID], attrs)
	return nil
}

func (s *worldStore) PatchUI(_ context.Context, uiID string, attrs orion.Attributes) error {
	s.patches[uiID] = append(s.patches[uiID], attrs)
	return nil
}

func attrValue(attrs orion.Attributes, name string) any {
	attr, ok := attrs[name].(map[string]any)
	if !ok {
		return nil
	}
	return attr["value"]
}

func tokenFromAttrs(attrs orion.Attributes) robot.TokenInfo {
	info := robot.TokenInfo{Waitings: []string{}}
	if locked, ok := attrValue(attrs, "is_locked").(bool); ok {
		info.IsLocked = locked
	}
	if owner, ok := attrValue(attrs, "lock_owner_id").(string); ok {
		info.LockOwnerID = owner
	}
	if waitings, ok := attrValue(attrs, "waitings").([]string); ok {
		info.Waitings = append([]string{}, waitings...)
	}
	return info
}

// splitList parses a comma separated robot list from a step argument.
func splitList(list string) []string {
	if list == "" {
		return []string{}
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
