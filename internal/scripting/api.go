// internal/scripting/api.go
package scripting

import (
	"math"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/models"
)

// Stats de base adressables par apply_std_stat_change / get_stat_stage
var validStats = map[string]bool{
	"attack":  true,
	"defense": true,
	"speed":   true,
}

func checkRole(l *lua.State, index int) models.Role {
	role := models.Role(lua.CheckString(l, index))
	if !role.Valid() {
		lua.ArgumentError(l, index, "expected 'player1' or 'player2'")
	}
	return role
}

func optRole(l *lua.State, index int, def models.Role) models.Role {
	if l.IsNoneOrNil(index) {
		return def
	}
	return checkRole(l, index)
}

func checkStat(l *lua.State, index int) string {
	stat := lua.CheckString(l, index)
	if !validStats[stat] {
		lua.ArgumentError(l, index, "expected 'attack', 'defense' or 'speed'")
	}
	return stat
}

func checkRegistrationID(l *lua.State, index int) uuid.UUID {
	id, err := uuid.Parse(lua.CheckString(l, index))
	if err != nil {
		lua.ArgumentError(l, index, "expected a registration id")
	}
	return id
}

func checkStatusValue(l *lua.State, index int) models.StatusValue {
	switch l.TypeOf(index) {
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return models.NumberStatus(n)
	case lua.TypeBoolean:
		return models.BoolStatus(l.ToBoolean(index))
	case lua.TypeString:
		s, _ := l.ToString(index)
		return models.StringStatus(s)
	}
	lua.ArgumentError(l, index, "expected a number, boolean or string")
	return models.StatusValue{}
}

func pushStatusValue(l *lua.State, v models.StatusValue) {
	switch v.Kind {
	case models.StatusKindNumber:
		l.PushNumber(v.Number)
	case models.StatusKindBool:
		l.PushBoolean(v.Bool)
	default:
		l.PushString(v.Str)
	}
}

// normalizeNumber ramène les flottants entiers de Lua vers des ints Go
func normalizeNumber(n float64) interface{} {
	if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
		return int(n)
	}
	return n
}

func luaToGo(l *lua.State, index int) interface{} {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToMap(l, index)
	default:
		return nil
	}
}

func tableToMap(l *lua.State, index int) map[string]interface{} {
	index = l.AbsIndex(index)
	m := make(map[string]interface{})
	if l.TypeOf(index) != lua.TypeTable {
		return m
	}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			m[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return m
}

func optionalTable(l *lua.State, index int) map[string]interface{} {
	if l.IsNoneOrNil(index) || l.TypeOf(index) != lua.TypeTable {
		return nil
	}
	return tableToMap(l, index)
}

func pushLogEntry(l *lua.State, entry models.LogEntry) {
	l.NewTable()
	l.PushString(entry.Source)
	l.SetField(-2, "source")
	l.PushString(entry.Text)
	l.SetField(-2, "text")
	l.PushString(entry.EffectType)
	l.SetField(-2, "effect_type")
	l.PushInteger(entry.Turn)
	l.SetField(-2, "turn")
	if len(entry.EffectDetails) > 0 {
		pushGoValue(l, entry.EffectDetails)
		l.SetField(-2, "effect_details")
	}
}

func pushGoValue(l *lua.State, v interface{}) {
	switch value := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(value)
	case int:
		l.PushInteger(value)
	case int64:
		l.PushInteger(int(value))
	case float64:
		l.PushNumber(value)
	case string:
		l.PushString(value)
	case map[string]interface{}:
		l.NewTable()
		for k, inner := range value {
			pushGoValue(l, inner)
			l.SetField(-2, k)
		}
	default:
		l.PushNil()
	}
}

// registrationFields aplatit une inscription pour les prédicats Lua
func registrationFields(rs models.RegisteredScript) map[string]interface{} {
	return map[string]interface{}{
		"registration_id":        rs.RegistrationID.String(),
		"script_id":              rs.ScriptID.String(),
		"source_attack_id":       rs.SourceAttackID.String(),
		"trigger_who":            string(rs.TriggerWho),
		"trigger_when":           string(rs.TriggerWhen),
		"trigger_duration":       string(rs.TriggerDuration),
		"original_attacker_role": string(rs.OriginalAttackerRole),
		"original_target_role":   string(rs.OriginalTargetRole),
		"start_turn":             rs.StartTurn,
	}
}

func valuesEqual(a, b interface{}) bool {
	if af, ok := a.(float64); ok {
		a = normalizeNumber(af)
	}
	if bf, ok := b.(float64); ok {
		b = normalizeNumber(bf)
	}
	return a == b
}

// registerAPI enregistre la surface de capacités dans l'état Lua; chaque
// fonction passe d'abord par le checkpoint de budget
func (r *Runtime) registerAPI(l *lua.State, ctx *Context, checkpoint func(*lua.State)) {
	register := func(name string, fn lua.Function) {
		l.Register(name, func(l *lua.State) int {
			checkpoint(l)
			return fn(l)
		})
	}

	register("log", func(l *lua.State) int {
		text := lua.CheckString(l, 1)
		effectType := lua.OptString(l, 2, models.EffectInfo)
		source := lua.OptString(l, 3, models.LogSourceScript)
		details := optionalTable(l, 4)
		ctx.appendLog(source, text, effectType, details)
		return 0
	})

	register("apply_std_damage", func(l *lua.State) int {
		power := int(lua.CheckNumber(l, 1))
		target := optRole(l, 2, ctx.TargetRole)
		attacker := ctx.ActorRole

		if power <= 0 {
			ctx.appendLog(models.LogSourceScript,
				"apply_std_damage called with non-positive power, no damage dealt.",
				models.EffectError, map[string]interface{}{"power": power})
			l.PushInteger(0)
			return 1
		}

		effAtk := r.calc.ModifiedStat(ctx.Players[attacker].Attack, ctx.StatStages[attacker]["attack"])
		effDef := r.calc.ModifiedStat(ctx.Players[target].Defense, ctx.StatStages[target]["defense"])
		damage := r.calc.CalculateDamage(power, effAtk, effDef)

		newHP := ctx.HP[target] - damage
		if newHP < 0 {
			newHP = 0
		}
		if newHP != ctx.HP[target] {
			ctx.HP[target] = newHP
			ctx.StateChanged = true
		}

		details := map[string]interface{}{"damage_dealt": damage}
		if ctx.SourceAttack != nil {
			details["source_attack_id"] = ctx.SourceAttack.ID.String()
			details["attack_name"] = ctx.SourceAttack.Name
		}
		ctx.appendLog(models.LogSourceScript,
			ctx.Players[target].Name+" took damage.", models.EffectDamage, details)

		l.PushInteger(damage)
		return 1
	})

	register("apply_std_hp_change", func(l *lua.State) int {
		delta := int(lua.CheckNumber(l, 1))
		target := optRole(l, 2, ctx.ActorRole)

		current := ctx.HP[target]
		maxHP := ctx.Players[target].MaxHP
		newHP := current + delta
		if newHP < 0 {
			newHP = 0
		}
		if newHP > maxHP {
			newHP = maxHP
		}
		actual := newHP - current

		if actual != 0 {
			ctx.HP[target] = newHP
			ctx.StateChanged = true

			details := map[string]interface{}{}
			if ctx.SourceAttack != nil {
				details["source_attack_id"] = ctx.SourceAttack.ID.String()
			}
			if actual > 0 {
				details["healing_done"] = actual
				ctx.appendLog(models.LogSourceScript,
					ctx.Players[target].Name+" recovered HP.", models.EffectHeal, details)
			} else {
				details["damage_dealt"] = -actual
				ctx.appendLog(models.LogSourceScript,
					ctx.Players[target].Name+" lost HP.", models.EffectDamage, details)
			}
		}

		l.PushInteger(actual)
		return 1
	})

	register("apply_std_stat_change", func(l *lua.State) int {
		stat := checkStat(l, 1)
		delta := int(lua.CheckNumber(l, 2))
		target := optRole(l, 3, ctx.ActorRole)

		current := ctx.StatStages[target][stat]
		newStage := current + delta
		if newStage > maxStatStage {
			newStage = maxStatStage
		}
		if newStage < minStatStage {
			newStage = minStatStage
		}

		if newStage != current {
			ctx.StatStages[target][stat] = newStage
			ctx.StateChanged = true
			ctx.appendLog(models.LogSourceScript,
				ctx.Players[target].Name+"'s "+stat+" changed.", models.EffectStatChange,
				map[string]interface{}{"stat": stat, "mod": newStage - current})
		} else {
			limit := "upper"
			if delta < 0 {
				limit = "lower"
			}
			ctx.appendLog(models.LogSourceScript,
				ctx.Players[target].Name+"'s "+stat+" is already at the "+limit+" limit.",
				models.EffectInfo, nil)
		}
		return 0
	})

	register("get_stat_stage", func(l *lua.State) int {
		role := checkRole(l, 1)
		stat := checkStat(l, 2)
		l.PushInteger(ctx.StatStages[role][stat])
		return 1
	})

	register("get_momentum", func(l *lua.State) int {
		role := checkRole(l, 1)
		l.PushInteger(ctx.Momentum[role])
		return 1
	})

	register("get_max_hp", func(l *lua.State) int {
		role := checkRole(l, 1)
		l.PushInteger(ctx.Players[role].MaxHP)
		return 1
	})

	register("get_player_name", func(l *lua.State) int {
		role := checkRole(l, 1)
		l.PushString(ctx.Players[role].Name)
		return 1
	})

	register("get_player_id", func(l *lua.State) int {
		role := checkRole(l, 1)
		l.PushString(ctx.Players[role].ID.String())
		return 1
	})

	register("has_custom_status", func(l *lua.State) int {
		role := checkRole(l, 1)
		name := lua.CheckString(l, 2)
		_, ok := ctx.CustomStatuses[role][name]
		l.PushBoolean(ok)
		return 1
	})

	register("get_custom_status", func(l *lua.State) int {
		role := checkRole(l, 1)
		name := lua.CheckString(l, 2)
		value, ok := ctx.CustomStatuses[role][name]
		if !ok {
			l.PushNil()
			return 1
		}
		pushStatusValue(l, value)
		return 1
	})

	register("set_custom_status", func(l *lua.State) int {
		role := checkRole(l, 1)
		name := lua.CheckString(l, 2)
		value := checkStatusValue(l, 3)

		if old, ok := ctx.CustomStatuses[role][name]; ok && old == value {
			return 0
		}
		ctx.CustomStatuses[role][name] = value
		ctx.StateChanged = true
		return 0
	})

	register("remove_custom_status", func(l *lua.State) int {
		role := checkRole(l, 1)
		name := lua.CheckString(l, 2)

		if _, ok := ctx.CustomStatuses[role][name]; ok {
			delete(ctx.CustomStatuses[role], name)
			ctx.StateChanged = true
		}
		return 0
	})

	register("modify_custom_status", func(l *lua.State) int {
		role := checkRole(l, 1)
		name := lua.CheckString(l, 2)
		change := lua.CheckNumber(l, 3)

		current, ok := ctx.CustomStatuses[role][name]
		if !ok {
			current = models.NumberStatus(0)
		}
		if current.Kind != models.StatusKindNumber {
			logrus.WithFields(logrus.Fields{
				"status": name,
				"kind":   current.Kind,
			}).Warn("modify_custom_status refused on non-numeric status")
			l.PushBoolean(false)
			return 1
		}

		ctx.CustomStatuses[role][name] = models.NumberStatus(current.Number + change)
		ctx.StateChanged = true
		l.PushBoolean(true)
		return 1
	})

	register("unregister_script", func(l *lua.State) int {
		id := checkRegistrationID(l, 1)
		ok := ctx.unregister(id)
		if !ok {
			logrus.WithField("registration_id", id).Warn("unregister_script: registration not found")
		}
		l.PushBoolean(ok)
		return 1
	})

	register("get_log_entries", func(l *lua.State) int {
		l.CreateTable(len(ctx.Log), 0)
		for i, entry := range ctx.Log {
			pushLogEntry(l, entry)
			l.RawSetInt(-2, i+1)
		}
		return 1
	})

	register("find_log_entry", func(l *lua.State) int {
		lua.CheckType(l, 1, lua.TypeTable)
		filters := tableToMap(l, 1)

		for _, entry := range ctx.Log {
			if logEntryMatches(entry, filters) {
				pushLogEntry(l, entry)
				return 1
			}
		}
		l.PushNil()
		return 1
	})

	register("is_script_registered", func(l *lua.State) int {
		lua.CheckType(l, 1, lua.TypeTable)
		filters := tableToMap(l, 1)

		for _, rs := range ctx.Registered {
			fields := registrationFields(rs)
			match := true
			for k, v := range filters {
				if !valuesEqual(fields[k], v) {
					match = false
					break
				}
			}
			if match {
				l.PushBoolean(true)
				return 1
			}
		}
		l.PushBoolean(false)
		return 1
	})
}

func logEntryMatches(entry models.LogEntry, filters map[string]interface{}) bool {
	for k, v := range filters {
		var field interface{}
		switch k {
		case "source":
			field = entry.Source
		case "text":
			field = entry.Text
		case "effect_type":
			field = entry.EffectType
		case "turn":
			field = entry.Turn
		default:
			field = entry.EffectDetails[k]
		}
		if !valuesEqual(field, v) {
			return false
		}
	}
	return true
}
