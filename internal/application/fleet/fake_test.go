package fleet_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/domain/robot"
)

// patchCall records one store mutation: the entity it targeted and the
// attribute payload it carried.
type patchCall struct {
	target string
	attrs  orion.Attributes
}

func (c patchCall) has(attr string) bool {
	_, ok := c.attrs[attr]
	return ok
}

// fakeStore scripts the world model for orchestrator tests. GetRobot
// consumes snapshots per robot in order, repeating the last one, which is
// how the tests drive the send_cmd_status handshake.
type fakeStore struct {
	mu sync.Mutex

	robots     map[string][]*robot.Robot
	robotGets  map[string]int
	places     []robot.Place
	plans      map[string]*robot.RoutePlan
	tokens     map[string]robot.TokenInfo
	patches    []patchCall
	placeNames []string

	getRobotErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		robots:    map[string][]*robot.Robot{},
		robotGets: map[string]int{},
		plans:     map[string]*robot.RoutePlan{},
		tokens:    map[string]robot.TokenInfo{},
	}
}

// pushRobot appends one GetRobot snapshot for a robot.
func (s *fakeStore) pushRobot(r *robot.Robot) {
	s.robots[r.ID] = append(s.robots[r.ID], r)
}

func (s *fakeStore) GetRobot(_ context.Context, robotID string) (*robot.Robot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getRobotErr != nil {
		return nil, s.getRobotErr
	}
	s.robotGets[robotID]++
	queue := s.robots[robotID]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no snapshot scripted for %s", robotID)
	}
	head := queue[0]
	if len(queue) > 1 {
		s.robots[robotID] = queue[1:]
	}
	return head, nil
}

func (s *fakeStore) QueryPlaceByName(_ context.Context, name string) (robot.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeNames = append(s.placeNames, name)
	for _, p := range s.places {
		if p.Name == name {
			return p, nil
		}
	}
	return robot.Place{}, fmt.Errorf("no place named %s", name)
}

func (s *fakeStore) GetPlace(_ context.Context, placeID string) (robot.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.places {
		if p.ID == placeID {
			return p, nil
		}
	}
	return robot.Place{}, fmt.Errorf("no place %s", placeID)
}

func (s *fakeStore) ListPlaces(_ context.Context) ([]robot.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.places, nil
}

func (s *fakeStore) QueryRoutePlan(_ context.Context, destinationID, viaKey, robotID string) (*robot.RoutePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[destinationID+"|"+viaKey+"|"+robotID]
	if !ok {
		return nil, fmt.Errorf("no route plan for %s via %q robot %s", destinationID, viaKey, robotID)
	}
	return plan, nil
}

func (s *fakeStore) GetTokenInfo(_ context.Context, tokenID string) (robot.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[tokenID], nil
}

func (s *fakeStore) UpdateToken(_ context.Context, tokenID string, attrs orion.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patchCall{target: "token:" + tokenID, attrs: attrs})
	s.tokens[tokenID] = decodeTokenAttrs(attrs)
	return nil
}

func (s *fakeStore) PatchRobot(_ context.Context, robotID string, attrs orion.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patchCall{target: "robot:" + robotID, attrs: attrs})
	return nil
}

func (s *fakeStore) PatchUI(_ context.Context, uiID string, attrs orion.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patchCall{target: "ui:" + uiID, attrs: attrs})
	return nil
}

// patchesFor filters recorded patches by target.
func (s *fakeStore) patchesFor(target string) []patchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []patchCall
	for _, p := range s.patches {
		if p.target == target {
			out = append(out, p)
		}
	}
	return out
}

// attrSequence flattens the recorded patches into "target/attr" entries in
// call order, keeping only attrs from the given set. It pins down the
// publication orderings the UI depends on.
func (s *fakeStore) attrSequence(attrs ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]bool{}
	for _, a := range attrs {
		wanted[a] = true
	}
	var out []string
	for _, p := range s.patches {
		for _, a := range attrs {
			if wanted[a] && p.has(a) {
				out = append(out, p.target+"/"+a)
			}
		}
	}
	return out
}

func decodeTokenAttrs(attrs orion.Attributes) robot.TokenInfo {
	var info robot.TokenInfo
	if a, ok := attrs["is_locked"].(map[string]any); ok {
		info.IsLocked, _ = a["value"].(bool)
	}
	if a, ok := attrs["lock_owner_id"].(map[string]any); ok {
		info.LockOwnerID, _ = a["value"].(string)
	}
	if a, ok := attrs["waitings"].(map[string]any); ok {
		if waitings, ok := a["value"].([]string); ok {
			info.Waitings = waitings
		}
	}
	return info
}

// fakeThrottle is the throttle gate double. err is returned as-is, so
// tests can script shared.ErrNotificationThrottled.
type fakeThrottle struct {
	mu       sync.Mutex
	err      error
	advanced []time.Time
}

func (f *fakeThrottle) AdvanceIfOlder(_ context.Context, _ string, incoming time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.advanced = append(f.advanced, incoming)
	return nil
}

// fakeMessages records operator messages.
type fakeMessages struct {
	mu     sync.Mutex
	states []string
	tokens []string
}

func (f *fakeMessages) WriteStateMessage(_ context.Context, robotID string, state robot.State, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, fmt.Sprintf("%s:%s:%s", robotID, state, destination))
	return nil
}

func (f *fakeMessages) WriteTokenMessage(_ context.Context, robotID string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, robotID+":"+message)
	return nil
}
