package db

const CreateSchema = `
CREATE TABLE IF NOT EXISTS players (
    id          BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    balance     NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tables (
    id             BIGSERIAL PRIMARY KEY,
    host_id        BIGINT NOT NULL REFERENCES players(id),
    game_type      TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'waiting'
                   CHECK (status IN ('waiting', 'in_progress', 'completed')),
    max_seats      INT NOT NULL CHECK (max_seats > 0),
    min_bet        NUMERIC(18,2) NOT NULL CHECK (min_bet > 0),
    current_round  INT NOT NULL DEFAULT 1,
    state          JSONB NOT NULL,
    version        BIGINT NOT NULL DEFAULT 1,
    turn_deadline  TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tables_turn_deadline
    ON tables (turn_deadline) WHERE status = 'in_progress';

CREATE TABLE IF NOT EXISTS seats (
    id             BIGSERIAL PRIMARY KEY,
    table_id       BIGINT NOT NULL REFERENCES tables(id),
    player_id      BIGINT NOT NULL REFERENCES players(id),
    position       INT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'left')),
    hands_played   INT NOT NULL DEFAULT 0,
    total_wagered  NUMERIC(18,2) NOT NULL DEFAULT 0,
    total_won      NUMERIC(18,2) NOT NULL DEFAULT 0,
    joined_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    left_at        TIMESTAMPTZ,
    CONSTRAINT unique_table_player UNIQUE (table_id, player_id)
);

CREATE TABLE IF NOT EXISTS bets (
    id           UUID PRIMARY KEY,
    player_id    BIGINT NOT NULL REFERENCES players(id),
    table_id     BIGINT NOT NULL REFERENCES tables(id),
    amount       NUMERIC(18,2) NOT NULL CHECK (amount > 0),
    type         TEXT NOT NULL CHECK (type IN ('main', 'side', 'split')),
    status       TEXT NOT NULL DEFAULT 'pending'
                 CHECK (status IN ('pending', 'won', 'lost', 'push', 'cancelled')),
    payout       NUMERIC(18,2) NOT NULL DEFAULT 0,
    multiplier   NUMERIC(6,2) NOT NULL DEFAULT 0,
    round        INT NOT NULL,
    bet_data     JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    resolved_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_bets_table_status ON bets (table_id, status);

CREATE TABLE IF NOT EXISTS transactions (
    id              BIGSERIAL PRIMARY KEY,
    player_id       BIGINT NOT NULL REFERENCES players(id),
    amount          NUMERIC(18,2) NOT NULL,
    type            TEXT NOT NULL CHECK (type IN ('bet', 'win', 'refund', 'grant')),
    status          TEXT NOT NULL DEFAULT 'completed',
    table_id        BIGINT REFERENCES tables(id),
    bet_id          UUID REFERENCES bets(id),
    balance_before  NUMERIC(18,2) NOT NULL,
    balance_after   NUMERIC(18,2) NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (balance_after = balance_before + amount)
);

CREATE INDEX IF NOT EXISTS idx_transactions_player ON transactions (player_id, id DESC);
`
