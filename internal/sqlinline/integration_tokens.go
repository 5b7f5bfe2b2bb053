package sqlinline

// QSelectProviderToken returns the API key stored for a provider.
const QSelectProviderToken = `--sql a9b5ffa1-3413-4e72-b058-eeb8fbf3356c
select token
from integration_tokens
where provider = $1::text;
`

// QUpsertProviderToken stores a provider API key, merging properties into
// any already recorded for it.
const QUpsertProviderToken = `--sql 56b99503-d006-4970-8f87-dcb149f35ff3
insert into integration_tokens (id, provider, token, properties)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token      = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
