package sqlinline

const QCreateSchema = `--sql b511fd86-d751-4913-84ad-ad8c898e9524
create table if not exists generation_jobs (
    id            uuid primary key,
    user_id       text not null,
    prompt        text not null,
    platform      text not null,
    status        text not null default 'pending'
                  check (status in ('pending', 'processing', 'completed', 'failed', 'cancelled')),
    cost          numeric(10, 4) not null default 0,
    result_url    text,
    error_kind    text check (error_kind in ('PROFANITY_DETECTED', 'AI_SERVICE_ERROR', 'STORAGE_UPLOAD_ERROR', 'UNKNOWN_ERROR')),
    error_message text,
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now(),
    check (result_url is null or error_kind is null)
);
create index if not exists generation_jobs_pending_idx
    on generation_jobs (created_at, id) where status = 'pending';
create index if not exists generation_jobs_dedup_idx
    on generation_jobs (user_id, platform, created_at desc) where status = 'completed';
create table if not exists integration_tokens (
    id         uuid primary key,
    provider   text not null unique,
    token      text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
