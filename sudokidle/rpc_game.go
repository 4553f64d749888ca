package sudokidle

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	RpcIdStateGet       = "sudokidle_state_get"
	RpcIdBoardNew       = "sudokidle_board_new"
	RpcIdBoardReset     = "sudokidle_board_reset"
	RpcIdCellSet        = "sudokidle_cell_set"
	RpcIdBoardSubmit    = "sudokidle_board_submit"
	RpcIdAbilityUse     = "sudokidle_ability_use"
	RpcIdIdlerUpgrade   = "sudokidle_idler_upgrade"
	RpcIdIdlersCollect  = "sudokidle_idlers_collect"
	RpcIdSettingsUpdate = "sudokidle_settings_update"
	RpcIdLifecycle      = "sudokidle_lifecycle"
	RpcIdGameReset      = "sudokidle_game_reset"
)

type rpcFunc func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

func (s *Sudokidle) registerRpcs(initializer runtime.Initializer) error {
	rpcs := map[string]rpcFunc{
		RpcIdStateGet:       rpcStateGet(s),
		RpcIdBoardNew:       rpcBoardNew(s),
		RpcIdBoardReset:     rpcBoardReset(s),
		RpcIdCellSet:        rpcCellSet(s),
		RpcIdBoardSubmit:    rpcBoardSubmit(s),
		RpcIdAbilityUse:     rpcAbilityUse(s),
		RpcIdIdlerUpgrade:   rpcIdlerUpgrade(s),
		RpcIdIdlersCollect:  rpcIdlersCollect(s),
		RpcIdSettingsUpdate: rpcSettingsUpdate(s),
		RpcIdLifecycle:      rpcLifecycle(s),
		RpcIdGameReset:      rpcGameReset(s),
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// rpcGame resolves the calling user's game.
func rpcGame(s *Sudokidle, ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (*Game, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return nil, ErrNoSessionUser
	}
	game, err := s.GameFor(ctx, logger, nk, userID)
	if err != nil {
		return nil, ErrInternal
	}
	return game, nil
}

func rpcDecode(logger runtime.Logger, payload string, v any) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		logger.Error("Failed to unmarshal request: %v", err)
		return ErrPayloadDecode
	}
	return nil
}

func rpcEncode(logger runtime.Logger, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal response: %v", err)
		return "", ErrPayloadEncode
	}
	return string(data), nil
}

func rpcStateGet(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}
		return rpcEncode(logger, game.State())
	}
}

func rpcBoardNew(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		var request struct {
			Difficulty string `json:"difficulty"`
		}
		if err := rpcDecode(logger, payload, &request); err != nil {
			return "", err
		}
		difficulty := s.config.DefaultDifficulty
		if request.Difficulty != "" {
			if difficulty, err = ParseDifficulty(request.Difficulty); err != nil {
				return "", err
			}
		}

		if err := game.NewBoard(ctx, difficulty); err != nil {
			logger.Error("Failed to load new board: %v", err)
			return "", ErrNoBoards
		}
		return rpcEncode(logger, game.State())
	}
}

func rpcBoardReset(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		result := game.ResetBoard(ctx)
		return rpcEncode(logger, struct {
			Result
			State *GameState `json:"state"`
		}{result, game.State()})
	}
}

func rpcCellSet(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		var request struct {
			Row   int `json:"row"`
			Col   int `json:"col"`
			Value int `json:"value"`
		}
		if err := rpcDecode(logger, payload, &request); err != nil {
			return "", err
		}

		result := game.SetCell(ctx, request.Row, request.Col, request.Value)
		return rpcEncode(logger, struct {
			CellResult
			State *GameState `json:"state"`
		}{result, game.State()})
	}
}

func rpcBoardSubmit(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		result, err := game.SubmitBoard(ctx)
		if err != nil {
			// The completion itself was recorded; only the follow-up board failed to load
			logger.Warn("Failed to load board after submit: %v", err)
		}
		return rpcEncode(logger, struct {
			SubmitResult
			State *GameState `json:"state"`
		}{result, game.State()})
	}
}

func rpcAbilityUse(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		var request struct {
			AbilityId string `json:"ability_id"`
			Index     int    `json:"index"`
		}
		if err := rpcDecode(logger, payload, &request); err != nil {
			return "", err
		}
		if request.AbilityId == "" {
			return "", ErrBadInput
		}

		var response struct {
			Result
			WrongCells []CellCoord `json:"wrong_cells,omitempty"`
			State      *GameState  `json:"state"`
		}
		if request.AbilityId == AbilityCheckAnswers {
			response.WrongCells, response.Result = game.CheckAnswers()
		} else {
			response.Result, err = game.UseAbility(ctx, request.AbilityId, request.Index)
			if err != nil {
				return "", err
			}
		}
		response.State = game.State()
		return rpcEncode(logger, response)
	}
}

func rpcIdlerUpgrade(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		var request struct {
			IdlerId string `json:"idler_id"`
		}
		if err := rpcDecode(logger, payload, &request); err != nil {
			return "", err
		}
		if request.IdlerId == "" {
			return "", ErrBadInput
		}

		result := game.UpgradeIdler(ctx, request.IdlerId)
		return rpcEncode(logger, struct {
			Result
			State *GameState `json:"state"`
		}{result, game.State()})
	}
}

func rpcIdlersCollect(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		produced := game.CollectIdleProduction(ctx)
		return rpcEncode(logger, struct {
			Produced int64      `json:"produced"`
			State    *GameState `json:"state"`
		}{produced, game.State()})
	}
}

func rpcSettingsUpdate(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		update := &SettingsUpdate{}
		if err := rpcDecode(logger, payload, update); err != nil {
			return "", err
		}

		game.UpdateSettings(ctx, update)
		return rpcEncode(logger, game.State())
	}
}

func rpcLifecycle(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		var request struct {
			State AppState `json:"state"`
		}
		if err := rpcDecode(logger, payload, &request); err != nil {
			return "", err
		}

		produced, err := game.HandleLifecycle(ctx, request.State)
		if err != nil {
			return "", err
		}
		return rpcEncode(logger, struct {
			Produced int64      `json:"produced"`
			State    *GameState `json:"state"`
		}{produced, game.State()})
	}
}

func rpcGameReset(s *Sudokidle) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		game, err := rpcGame(s, ctx, logger, nk)
		if err != nil {
			return "", err
		}

		if err := game.ResetGame(ctx); err != nil {
			logger.Error("Failed to reset game: %v", err)
			return "", runtime.NewError("failed to reset game", INTERNAL_ERROR_CODE)
		}
		return rpcEncode(logger, game.State())
	}
}
