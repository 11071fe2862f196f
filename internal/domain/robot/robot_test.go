package robot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robocourier/control-plane/internal/domain/robot"
)

func TestRobot_Available(t *testing.T) {
	tests := []struct {
		name  string
		robot robot.Robot
		want  bool
	}{
		{
			name:  "idle with empty queue",
			robot: robot.Robot{Mode: robot.ModeStandby, HasRemainingList: true, Remaining: []robot.Leg{}},
			want:  true,
		},
		{
			name:  "pre-provisioned init mode with empty queue",
			robot: robot.Robot{Mode: robot.ModeInit, HasRemainingList: true, Remaining: []robot.Leg{}},
			want:  true,
		},
		{
			name:  "navigating",
			robot: robot.Robot{Mode: robot.ModeNavi, HasRemainingList: true, Remaining: []robot.Leg{}},
			want:  false,
		},
		{
			name:  "queue still holds legs",
			robot: robot.Robot{Mode: robot.ModeStandby, HasRemainingList: true, Remaining: []robot.Leg{{To: "x"}}},
			want:  false,
		},
		{
			name:  "queue attribute missing or malformed",
			robot: robot.Robot{Mode: robot.ModeStandby},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.robot.Available())
		})
	}
}

func TestRobot_CmdResult(t *testing.T) {
	r := robot.Robot{SendCmdInfo: map[string]any{"result": "ack"}}
	result, ok := r.CmdResult()
	assert.True(t, ok)
	assert.Equal(t, "ack", result)

	r = robot.Robot{SendCmdInfo: map[string]any{"errors": "wheel jam"}}
	_, ok = r.CmdResult()
	assert.False(t, ok)
	assert.Equal(t, "wheel jam", r.CmdErrors())

	r = robot.Robot{SendCmdInfo: "not a mapping"}
	_, ok = r.CmdResult()
	assert.False(t, ok)
	assert.Equal(t, "", r.CmdErrors())

	r = robot.Robot{}
	_, ok = r.CmdResult()
	assert.False(t, ok)
}
