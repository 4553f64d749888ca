package sudokidle

// Settings are the player's toggles. The engine reads them; only Game.UpdateSettings writes them.
type Settings struct {
	SoundEnabled        bool `json:"sound_enabled"`
	CheckAnswersEnabled bool `json:"check_answers_enabled"`
	AutofillEnabled     bool `json:"autofill_enabled"`
	DebugErrorsEnabled  bool `json:"debug_errors_enabled"`
}

func DefaultSettings() *Settings {
	return &Settings{
		SoundEnabled:       true,
		DebugErrorsEnabled: true,
	}
}

// SettingsUpdate is a partial settings change. Nil fields are left as they are.
type SettingsUpdate struct {
	SoundEnabled        *bool `json:"sound_enabled,omitempty"`
	CheckAnswersEnabled *bool `json:"check_answers_enabled,omitempty"`
	AutofillEnabled     *bool `json:"autofill_enabled,omitempty"`
	DebugErrorsEnabled  *bool `json:"debug_errors_enabled,omitempty"`
}

func (s *Settings) Apply(update *SettingsUpdate) {
	if update == nil {
		return
	}
	if update.SoundEnabled != nil {
		s.SoundEnabled = *update.SoundEnabled
	}
	if update.CheckAnswersEnabled != nil {
		s.CheckAnswersEnabled = *update.CheckAnswersEnabled
	}
	if update.AutofillEnabled != nil {
		s.AutofillEnabled = *update.AutofillEnabled
	}
	if update.DebugErrorsEnabled != nil {
		s.DebugErrorsEnabled = *update.DebugErrorsEnabled
	}
}
