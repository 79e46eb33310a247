package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS clients (
    id            BIGSERIAL PRIMARY KEY,
    name          TEXT NOT NULL,
    code          TEXT NOT NULL UNIQUE,
    contact_name  TEXT NOT NULL DEFAULT '',
    contact_email TEXT NOT NULL DEFAULT '',
    contact_phone TEXT NOT NULL DEFAULT '',
    address       TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sites (
    id          BIGSERIAL PRIMARY KEY,
    client_id   BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    code        TEXT NOT NULL,
    address     TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (client_id, code)
);

CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    client_id     BIGINT REFERENCES clients(id) ON DELETE CASCADE,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'viewer',
    site_id       BIGINT REFERENCES sites(id) ON DELETE SET NULL,
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_users_client ON users(client_id);

CREATE TABLE IF NOT EXISTS role_permissions (
    id      BIGSERIAL PRIMARY KEY,
    role    TEXT NOT NULL,
    module  TEXT NOT NULL,
    action  TEXT NOT NULL,
    UNIQUE (role, module, action)
);

CREATE TABLE IF NOT EXISTS settings (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL DEFAULT '',
    updated_by  TEXT NOT NULL DEFAULT 'system',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS counters (
    name   TEXT PRIMARY KEY,
    value  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assets (
    id             BIGSERIAL PRIMARY KEY,
    client_id      BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    site_id        BIGINT REFERENCES sites(id) ON DELETE SET NULL,
    code           TEXT NOT NULL,
    serial_number  TEXT NOT NULL DEFAULT '',
    asset_type     TEXT NOT NULL DEFAULT 'camera',
    make           TEXT NOT NULL DEFAULT '',
    model          TEXT NOT NULL DEFAULT '',
    location       TEXT NOT NULL DEFAULT '',
    ip_address     TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'active',
    installed_at   TIMESTAMPTZ,
    warranty_until TIMESTAMPTZ,
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (client_id, code)
);
CREATE INDEX IF NOT EXISTS idx_assets_site ON assets(site_id);
CREATE INDEX IF NOT EXISTS idx_assets_serial ON assets(serial_number);
CREATE INDEX IF NOT EXISTS idx_assets_ip ON assets(ip_address);

CREATE TABLE IF NOT EXISTS asset_update_requests (
    id           BIGSERIAL PRIMARY KEY,
    asset_id     BIGINT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
    client_id    BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    requested_by BIGINT NOT NULL REFERENCES users(id),
    changes_json TEXT NOT NULL DEFAULT '{}',
    reason       TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'pending',
    reviewed_by  BIGINT REFERENCES users(id),
    review_note  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reviewed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_aur_asset ON asset_update_requests(asset_id, status);

CREATE TABLE IF NOT EXISTS tickets (
    id           BIGSERIAL PRIMARY KEY,
    number       TEXT NOT NULL UNIQUE,
    client_id    BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    site_id      BIGINT REFERENCES sites(id) ON DELETE SET NULL,
    asset_id     BIGINT REFERENCES assets(id) ON DELETE SET NULL,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT 'other',
    priority     TEXT NOT NULL DEFAULT 'medium',
    status       TEXT NOT NULL DEFAULT 'open',
    source       TEXT NOT NULL DEFAULT 'manual',
    reported_by  BIGINT REFERENCES users(id) ON DELETE SET NULL,
    assigned_to  BIGINT REFERENCES users(id) ON DELETE SET NULL,
    due_at       TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at  TIMESTAMPTZ,
    closed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tickets_client_status ON tickets(client_id, status);
CREATE INDEX IF NOT EXISTS idx_tickets_asset ON tickets(asset_id);
CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets(assigned_to);

CREATE TABLE IF NOT EXISTS ticket_history (
    id          BIGSERIAL PRIMARY KEY,
    ticket_id   BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON ticket_history(ticket_id);

CREATE TABLE IF NOT EXISTS ticket_comments (
    id          BIGSERIAL PRIMARY KEY,
    ticket_id   BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    author_id   BIGINT REFERENCES users(id) ON DELETE SET NULL,
    author      TEXT NOT NULL DEFAULT '',
    body        TEXT NOT NULL,
    internal    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ticket_comments_ticket ON ticket_comments(ticket_id);

CREATE TABLE IF NOT EXISTS stock_items (
    id             BIGSERIAL PRIMARY KEY,
    client_id      BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    site_id        BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    item_code      TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    asset_type     TEXT NOT NULL DEFAULT '',
    make           TEXT NOT NULL DEFAULT '',
    model          TEXT NOT NULL DEFAULT '',
    item_condition TEXT NOT NULL DEFAULT 'new',
    quantity       INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (site_id, item_code, item_condition)
);
CREATE INDEX IF NOT EXISTS idx_stock_client ON stock_items(client_id);

CREATE TABLE IF NOT EXISTS stock_transfers (
    id            BIGSERIAL PRIMARY KEY,
    number        TEXT NOT NULL UNIQUE,
    client_id     BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    from_site_id  BIGINT NOT NULL REFERENCES sites(id),
    to_site_id    BIGINT NOT NULL REFERENCES sites(id),
    status        TEXT NOT NULL DEFAULT 'pending',
    requested_by  BIGINT REFERENCES users(id) ON DELETE SET NULL,
    courier       TEXT NOT NULL DEFAULT '',
    tracking_no   TEXT NOT NULL DEFAULT '',
    notes         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    dispatched_at TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    cancelled_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transfers_client_status ON stock_transfers(client_id, status);

CREATE TABLE IF NOT EXISTS stock_transfer_items (
    id             BIGSERIAL PRIMARY KEY,
    transfer_id    BIGINT NOT NULL REFERENCES stock_transfers(id) ON DELETE CASCADE,
    source_item_id BIGINT NOT NULL REFERENCES stock_items(id),
    item_code      TEXT NOT NULL,
    item_condition TEXT NOT NULL DEFAULT 'new',
    quantity       INTEGER NOT NULL CHECK (quantity > 0)
);
CREATE INDEX IF NOT EXISTS idx_transfer_items_transfer ON stock_transfer_items(transfer_id);

CREATE TABLE IF NOT EXISTS rmas (
    id                  BIGSERIAL PRIMARY KEY,
    number              TEXT NOT NULL UNIQUE,
    client_id           BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    site_id             BIGINT REFERENCES sites(id) ON DELETE SET NULL,
    asset_id            BIGINT NOT NULL REFERENCES assets(id),
    ticket_id           BIGINT REFERENCES tickets(id) ON DELETE SET NULL,
    rma_type            TEXT NOT NULL DEFAULT 'repair',
    vendor              TEXT NOT NULL DEFAULT '',
    fault_description   TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'open',
    repair_status       TEXT NOT NULL DEFAULT 'pending',
    replacement_status  TEXT NOT NULL DEFAULT 'not_required',
    replacement_item_id BIGINT REFERENCES stock_items(id) ON DELETE SET NULL,
    courier             TEXT NOT NULL DEFAULT '',
    outbound_tracking   TEXT NOT NULL DEFAULT '',
    return_tracking     TEXT NOT NULL DEFAULT '',
    created_by          BIGINT REFERENCES users(id) ON DELETE SET NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    closed_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_rmas_client_status ON rmas(client_id, status);
CREATE INDEX IF NOT EXISTS idx_rmas_asset ON rmas(asset_id);

CREATE TABLE IF NOT EXISTS rma_history (
    id          BIGSERIAL PRIMARY KEY,
    rma_id      BIGINT NOT NULL REFERENCES rmas(id) ON DELETE CASCADE,
    track       TEXT NOT NULL,
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rma_history_rma ON rma_history(rma_id);

CREATE TABLE IF NOT EXISTS notifications (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    client_id   BIGINT REFERENCES clients(id) ON DELETE CASCADE,
    type        TEXT NOT NULL,
    severity    TEXT NOT NULL DEFAULT 'info',
    title       TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    entity_type TEXT NOT NULL DEFAULT '',
    entity_id   INTEGER NOT NULL DEFAULT 0,
    read_at     TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read_at);

CREATE TABLE IF NOT EXISTS work_logs (
    id               BIGSERIAL PRIMARY KEY,
    user_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    client_id        BIGINT REFERENCES clients(id) ON DELETE CASCADE,
    log_date         TEXT NOT NULL,
    source           TEXT NOT NULL DEFAULT 'manual',
    category         TEXT NOT NULL DEFAULT 'general',
    description      TEXT NOT NULL DEFAULT '',
    entity_type      TEXT NOT NULL DEFAULT '',
    entity_id        INTEGER NOT NULL DEFAULT 0,
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_work_logs_user_date ON work_logs(user_id, log_date);

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    client_id   INTEGER NOT NULL DEFAULT 0,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    msg_key     TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS email_log (
    id          BIGSERIAL PRIMARY KEY,
    to_address  TEXT NOT NULL,
    subject     TEXT NOT NULL DEFAULT '',
    event_type  TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    sent_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
