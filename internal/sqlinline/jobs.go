package sqlinline

// Column order shared by every job query below:
// id, user_id, prompt, platform, status, cost, result_url, error_kind, error_message, created_at, updated_at

const QInsertJob = `--sql 1230f875-a89d-4bf7-9251-72cb4472af2e
insert into generation_jobs (id, user_id, prompt, platform, status, cost, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::numeric, $7::timestamptz, $8::timestamptz);
`

const QSelectJobForUser = `--sql 44372d8c-9912-40a7-b882-28cb6fa26317
select id::text, user_id, prompt, platform, status, cost::float8,
       coalesce(result_url, ''), coalesce(error_kind, ''), coalesce(error_message, ''),
       created_at, updated_at
from generation_jobs
where id = $1::uuid and user_id = $2::text;
`

const QSelectRecentCompletedJob = `--sql b79b4af4-602c-4443-8461-1252238e970b
select id::text, user_id, prompt, platform, status, cost::float8,
       coalesce(result_url, ''), coalesce(error_kind, ''), coalesce(error_message, ''),
       created_at, updated_at
from generation_jobs
where user_id = $1::text
  and prompt = $2::text
  and platform = $3::text
  and status = 'completed'
  and created_at >= $4::timestamptz
order by created_at desc
limit 1;
`

// QClaimPendingJobs claims the oldest pending jobs in one statement. SKIP
// LOCKED keeps overlapping claimers from ever returning the same row.
const QClaimPendingJobs = `--sql b7ca6f8b-f554-497d-a13c-5326fa3d67a8
with next_jobs as (
    select id
    from generation_jobs
    where status = 'pending'
    order by created_at asc, id asc
    for update skip locked
    limit $1::int
)
update generation_jobs j
set status = 'processing', updated_at = now()
from next_jobs
where j.id = next_jobs.id and j.status = 'pending'
returning j.id::text, j.user_id, j.prompt, j.platform, j.status, j.cost::float8,
          coalesce(j.result_url, ''), coalesce(j.error_kind, ''), coalesce(j.error_message, ''),
          j.created_at, j.updated_at;
`

const QCompleteJob = `--sql 351442c1-0b88-4b6d-ac12-d4b50bc532c6
update generation_jobs
set status = 'completed', result_url = $2::text, updated_at = now()
where id = $1::uuid and status = 'processing'
returning id::text, user_id, prompt, platform, status, cost::float8,
          coalesce(result_url, ''), coalesce(error_kind, ''), coalesce(error_message, ''),
          created_at, updated_at;
`

const QFailJob = `--sql 301d1633-50db-4ac2-b16c-3c4eb8a8ef5a
update generation_jobs
set status = 'failed', error_kind = $2::text, error_message = $3::text, updated_at = now()
where id = $1::uuid and status = 'processing'
returning id::text, user_id, prompt, platform, status, cost::float8,
          coalesce(result_url, ''), coalesce(error_kind, ''), coalesce(error_message, ''),
          created_at, updated_at;
`

const QCancelJob = `--sql a26ab768-75a8-40d0-83a6-d5d2e7883e0d
update generation_jobs
set status = 'cancelled', updated_at = now()
where id = $1::uuid and user_id = $2::text and status = 'pending'
returning id::text, user_id, prompt, platform, status, cost::float8,
          coalesce(result_url, ''), coalesce(error_kind, ''), coalesce(error_message, ''),
          created_at, updated_at;
`

const QSelectJobStatusByID = `--sql 31808af1-ab03-4287-b899-5f63eca75d49
select status
from generation_jobs
where id = $1::uuid;
`

const QCountPendingJobs = `--sql e930db32-a022-4228-a0d3-05f33f68014d
select count(*)
from generation_jobs
where status = 'pending';
`

const QFailStaleJobs = `--sql bdaa0681-2a66-45e5-9488-0ebf9ce58a4f
update generation_jobs
set status = 'failed',
    error_kind = 'UNKNOWN_ERROR',
    error_message = 'worker stopped while the job was processing',
    updated_at = now()
where status = 'processing' and updated_at < $1::timestamptz;
`
