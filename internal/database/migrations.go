package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Migration 1: Table des joueurs
const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    username VARCHAR(30) NOT NULL UNIQUE,
    -- Email facultatif; l'unicité ne s'applique qu'aux valeurs renseignées
    email VARCHAR(255) NOT NULL DEFAULT '',
    password_hash VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'player' CHECK (role IN ('player', 'admin')),

    -- Stats de base (multiples de 10, somme 400)
    hp INTEGER NOT NULL DEFAULT 100 CHECK (hp >= 10),
    attack INTEGER NOT NULL DEFAULT 100 CHECK (attack >= 10),
    defense INTEGER NOT NULL DEFAULT 100 CHECK (defense >= 10),
    speed INTEGER NOT NULL DEFAULT 100 CHECK (speed >= 10),

    credits INTEGER NOT NULL DEFAULT 10 CHECK (credits >= 0),
    allow_bot_challenges BOOLEAN NOT NULL DEFAULT false,
    profile_prompt TEXT NOT NULL DEFAULT '',
    profile_picture BYTEA,
    stats JSONB NOT NULL DEFAULT '{}',

    last_seen TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

// Migration 2: Table des attaques
const createAttacksTable = `
CREATE TABLE IF NOT EXISTS attacks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(50) NOT NULL UNIQUE,
    description VARCHAR(150) NOT NULL DEFAULT '',
    emoji VARCHAR(5) NOT NULL DEFAULT '',
    momentum_cost INTEGER NOT NULL CHECK (momentum_cost BETWEEN 1 AND 100),
    creator_id UUID REFERENCES users(id) ON DELETE SET NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

// Migration 3: Table des scripts Lua attachés aux attaques
const createScriptsTable = `
CREATE TABLE IF NOT EXISTS scripts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    attack_id UUID NOT NULL REFERENCES attacks(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    lua_code TEXT NOT NULL,
    tooltip_description VARCHAR(150) NOT NULL DEFAULT '',
    trigger_who VARCHAR(10) NOT NULL CHECK (trigger_who IN ('ME', 'ENEMY', 'ANY')),
    trigger_when VARCHAR(20) NOT NULL CHECK (trigger_when IN ('ON_USE', 'BEFORE_TURN', 'AFTER_TURN', 'BEFORE_ATTACK', 'AFTER_ATTACK')),
    trigger_duration VARCHAR(20) NOT NULL CHECK (trigger_duration IN ('ONCE', 'PERSISTENT')),
    -- Ordre d'exécution au sein de l'attaque (les scripts ON_USE s'exécutent dans cet ordre)
    position INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

// Migration 4: Attaques apprises et loadout sélectionné
const createUserAttacksTables = `
CREATE TABLE IF NOT EXISTS user_attacks (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    attack_id UUID NOT NULL REFERENCES attacks(id) ON DELETE CASCADE,
    learned_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, attack_id)
);

CREATE TABLE IF NOT EXISTS user_selected_attacks (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    attack_id UUID NOT NULL REFERENCES attacks(id) ON DELETE CASCADE,
    position INTEGER NOT NULL CHECK (position BETWEEN 0 AND 5),
    PRIMARY KEY (user_id, attack_id),
    UNIQUE (user_id, position)
);`

// Migration 5: Table des batailles (état mutable en JSONB, une ligne par bataille)
const createBattlesTable = `
CREATE TABLE IF NOT EXISTS battles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player1_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    player2_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'finished', 'declined')),
    winner_id UUID REFERENCES users(id) ON DELETE SET NULL,
    player2_is_ai_controlled BOOLEAN NOT NULL DEFAULT false,
    turn_number INTEGER NOT NULL DEFAULT 1 CHECK (turn_number >= 1),
    whose_turn VARCHAR(10) NOT NULL DEFAULT 'player1' CHECK (whose_turn IN ('player1', 'player2')),

    hp JSONB NOT NULL DEFAULT '{}',
    momentum JSONB NOT NULL DEFAULT '{}',
    stat_stages JSONB NOT NULL DEFAULT '{}',
    custom_statuses JSONB NOT NULL DEFAULT '{}',
    battle_attacks JSONB NOT NULL DEFAULT '{}',
    attacks_used JSONB NOT NULL DEFAULT '{}',
    registered_scripts JSONB NOT NULL DEFAULT '[]',
    event_log JSONB NOT NULL DEFAULT '[]',

    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

// Migration 6: Stats d'usage des attaques
const createAttackUsageStatsTable = `
CREATE TABLE IF NOT EXISTS attack_usage_stats (
    attack_id UUID PRIMARY KEY REFERENCES attacks(id) ON DELETE CASCADE,
    times_used INTEGER NOT NULL DEFAULT 0,
    wins_vs_human INTEGER NOT NULL DEFAULT 0,
    losses_vs_human INTEGER NOT NULL DEFAULT 0,
    wins_vs_bot INTEGER NOT NULL DEFAULT 0,
    losses_vs_bot INTEGER NOT NULL DEFAULT 0,
    total_damage_dealt BIGINT NOT NULL DEFAULT 0,
    total_healing_done BIGINT NOT NULL DEFAULT 0,
    co_used_with_counts JSONB NOT NULL DEFAULT '{}'
);`

// Migration 7: Configuration du jeu (ligne singleton)
const createGameConfigurationTable = `
CREATE TABLE IF NOT EXISTS game_configuration (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    attack_generation_cost INTEGER NOT NULL DEFAULT 1 CHECK (attack_generation_cost >= 1),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO game_configuration (id, attack_generation_cost)
VALUES (1, 1)
ON CONFLICT (id) DO NOTHING;`

// Migration 8: Index
const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_attacks_creator ON attacks(creator_id);
CREATE INDEX IF NOT EXISTS idx_scripts_attack ON scripts(attack_id);
CREATE INDEX IF NOT EXISTS idx_battles_player1 ON battles(player1_id);
CREATE INDEX IF NOT EXISTS idx_battles_player2 ON battles(player2_id);
CREATE INDEX IF NOT EXISTS idx_battles_status ON battles(status);
CREATE INDEX IF NOT EXISTS idx_battles_pending_created ON battles(created_at) WHERE status = 'pending';`

// RunMigrations exécute les migrations de base de données
func RunMigrations(db *sqlx.DB) error {
	logrus.Info("Running battle database migrations...")

	migrationList := []string{
		createUsersTable,
		createAttacksTable,
		createScriptsTable,
		createUserAttacksTables,
		createBattlesTable,
		createAttackUsageStatsTable,
		createGameConfigurationTable,
		createIndexes,
	}

	// Exécuter chaque migration
	for i, migration := range migrationList {
		logrus.WithField("migration", i+1).Debug("Executing migration")
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logrus.WithField("count", len(migrationList)).Info("Battle database migrations completed")
	return nil
}
