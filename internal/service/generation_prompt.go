package service

import (
	"fmt"
	"strings"

	"battle/internal/models"
)

// generationSystemPrompt cadre le modèle: sortie JSON stricte, API Lua fixe
const generationSystemPrompt = `You are an attack designer for a turn-based battle game.
You always answer with a raw JSON array and nothing else: no prose, no markdown fences.`

// luaAPIDocs est la documentation d'API injectée telle quelle dans le prompt,
// elle doit rester alignée avec les capacités exposées par le runtime
const luaAPIDocs = `Available Lua API inside scripts:
  log(message)                                   -- append a narration line
  apply_std_damage(power)                        -- standard damage from actor to target, returns damage dealt
  apply_std_hp_change(amount [, role])           -- heal (+) or hurt (-), clamped to [0, max HP], returns actual change
  apply_std_stat_change(role, stat, delta)       -- stat is "attack"|"defense"|"speed", stages clamp to [-6, +6]
  get_stat_stage(role, stat)                     -- current stage
  get_momentum(role)                             -- current momentum
  get_max_hp(role), get_player_name(role), get_player_id(role)
  has_custom_status(role, key), get_custom_status(role, key)
  set_custom_status(role, key, value)            -- value is number, boolean or string
  remove_custom_status(role, key)
  modify_custom_status(role, key, delta)         -- numeric statuses only
  unregister_script(registration_id)
  get_log_entries(), find_log_entry(filters), is_script_registered(filters)
Globals: ME_ROLE, ENEMY_ROLE, CURRENT_ACTOR_ROLE, CURRENT_TARGET_ROLE,
CONTEXT_ROLE, CURRENT_TURN, SCRIPT_START_TURN, CURRENT_REGISTRATION_ID,
P1_HP, P2_HP.
Forbidden: os, io, require, package, load, loadstring, dofile, loadfile,
coroutine, print, any form of I/O or sleeping.`

// buildGenerationPrompt assemble le prompt déterministe: même concept et
// mêmes favoris produisent exactement le même texte
func buildGenerationPrompt(concept string, favorites []*models.Attack) string {
	var sb strings.Builder

	sb.WriteString("Design exactly 6 attacks as a JSON array. Each element:\n")
	sb.WriteString(`{"name": string (max 50 chars), "description": string (max 150 chars), "emoji": string,` + "\n")
	sb.WriteString(` "momentum_cost": integer in [1,100],` + "\n")
	sb.WriteString(` "scripts": [{"name": string, "lua_code": string, "tooltip_description": string,` + "\n")
	sb.WriteString(`   "trigger_who": "ME"|"ENEMY"|"ANY", "trigger_when": "ON_USE"|"BEFORE_TURN"|"AFTER_TURN"|"BEFORE_ATTACK"|"AFTER_ATTACK",` + "\n")
	sb.WriteString(`   "trigger_duration": "ONCE"|"PERSISTENT"}]}` + "\n")
	sb.WriteString("ON_USE scripts always use trigger_who ME and trigger_duration ONCE.\n\n")
	sb.WriteString(luaAPIDocs)
	sb.WriteString("\n\n")

	if concept != "" {
		fmt.Fprintf(&sb, "Theme concept: %s\n", concept)
	} else {
		sb.WriteString("Theme concept: designer's choice\n")
	}

	if len(favorites) > 0 {
		sb.WriteString("The player enjoys these attacks, design in a similar spirit:\n")
		for _, attack := range favorites {
			fmt.Fprintf(&sb, "- %s (%s, momentum %d): %s\n",
				attack.Name, attack.Emoji, attack.MomentumCost, attack.Description)
		}
	}

	sb.WriteString("\nBalance momentum_cost against power. Answer with the JSON array only.")
	return sb.String()
}
