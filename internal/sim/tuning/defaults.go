package tuning

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         50,
		Seed:               1337,
		SnapshotEveryTicks: 3000,
		CollisionQueueSize: 256,
		IntentQueueSize:    1024,
		TargetFloor:        0.01,

		Physics: Physics{
			Gravity:        -9.81,
			LinearDamping:  0.5,
			AngularDamping: 2,
			Restitution:    0.2,
		},
		Box: Box{
			Radius:             0.6,
			Mass:               2,
			AbandonThreshold:   0.01,
			DenialThreshold:    0.05,
			DenialFloorSeconds: 0.5,
			AngerThreshold:     0.1,
			AngerBaseRate:      0.3,
		},
		Player: Player{
			Radius:           0.5,
			Mass:             1,
			EyeHeight:        0.7,
			MoveSpeed:        8,
			MaxVelocity:      10,
			SwayTorque:       5,
			SwayThreshold:    0.01,
			StumbleImpulse:   2,
			StumbleThreshold: 0.4,
			AngerThreshold:   0.1,
			AngerBaseRate:    0.3,
		},
		Hands: Hands{
			GrabRange:               2.5,
			HandDistance:            1.2,
			HandHeight:              1.2,
			SideOffset:              0.5,
			TossSpeed:               6,
			TossForward:             0.8,
			TossUp:                  0.5,
			FocusAttractionStrength: 4,
			FocusMaxDistance:        4,
		},
		Magnets: Magnets{
			Radius:                0.15,
			Mass:                  0.1,
			StripImpulseThreshold: 10,
			Accepts:               []string{"BOX", "PLAYER"},
		},

		Targets: []TargetRule{
			{Entity: "BOX", Emotion: "ABANDONMENT", Base: 0.3},
			{Entity: "BOX", Emotion: "DENIAL", Base: 0.4},
			{Entity: "BOX", Emotion: "ANGER", Base: 0.2},
			{Entity: "PLAYER", Emotion: "FEAR", Base: 0.3, Radius: 4, Near: 0.25, Far: 0.8},
			{Entity: "PLAYER", Emotion: "ANGER", Base: 0.15},
		},
		Multipliers: []Multiplier{
			{Entity: "BOX", Emotion: "ABANDONMENT", Word: "STAY", Factor: 0.3},
			{Entity: "BOX", Emotion: "ABANDONMENT", Word: "DONT_LEAVE", Factor: 0.3},
			{Entity: "BOX", Emotion: "ABANDONMENT", Word: "SAFE", Factor: 0.6},
			{Entity: "BOX", Emotion: "DENIAL", Word: "TOGETHER", Factor: 0.5},
			{Entity: "BOX", Emotion: "DENIAL", Word: "PLEASE", Factor: 0.7},
			{Entity: "BOX", Emotion: "ANGER", Word: "QUIET", Factor: 0.5},
			{Entity: "BOX", Emotion: "ANGER", Word: "SORRY", Factor: 0.6},
			{Entity: "PLAYER", Emotion: "FEAR", Word: "WARMTH", Factor: 0.4},
			{Entity: "PLAYER", Emotion: "FEAR", Word: "HELP", Factor: 0.7},
			{Entity: "PLAYER", Emotion: "FEAR", Word: "SORRY", Factor: 0.9},
			{Entity: "PLAYER", Emotion: "ANGER", Word: "QUIET", Factor: 0.5},
			{Entity: "PLAYER", Emotion: "ANGER", Word: "HOLD_ME", Factor: 0.6},
		},

		Scene: Scene{
			SpawnPoints: [][3]float64{{-3, 0.5, -3}, {3, 0.5, -3}, {-3, 0.5, 3}, {3, 0.5, 3}},
			Boxes: []SceneBox{
				{ID: "box", Pos: [3]float64{0, 0.6, 0}},
			},
			Magnets: []SceneMagnet{
				{ID: "m_warmth", Word: "WARMTH", Pos: [3]float64{-1.5, 0.15, 0}},
				{ID: "m_help", Word: "HELP", Pos: [3]float64{-1.2, 0.15, 0.6}},
				{ID: "m_sorry", Word: "SORRY", Pos: [3]float64{-0.9, 0.15, 1.2}},
				{ID: "m_stay", Word: "STAY", Pos: [3]float64{1.5, 0.15, 0}},
				{ID: "m_safe", Word: "SAFE", Pos: [3]float64{1.2, 0.15, 0.6}},
				{ID: "m_together", Word: "TOGETHER", Pos: [3]float64{0.9, 0.15, 1.2}},
				{ID: "m_quiet", Word: "QUIET", Pos: [3]float64{0, 0.15, -1.5}},
				{ID: "m_please", Word: "PLEASE", Pos: [3]float64{0.6, 0.15, -1.2}},
				{ID: "m_hold_me", Word: "HOLD_ME", Pos: [3]float64{-0.6, 0.15, -1.2}},
				{ID: "m_dont_leave", Word: "DONT_LEAVE", Pos: [3]float64{0, 0.15, 1.8}},
			},
		},
	}
}
