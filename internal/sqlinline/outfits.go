package sqlinline

const QEnsureOutfitHistory = `--sql 3f0c8a52-9d1e-4b7a-a6c2-5e8f1b2d7c90
create table if not exists outfit_history (
  id uuid primary key,
  outfit_id text not null,
  namespace text not null,
  kind text not null,
  prompt_text text not null default '',
  revision_text text not null default '',
  image_url text not null default '',
  delivery text not null,
  created_at timestamptz not null default now()
);
create index if not exists outfit_history_namespace_created_idx
  on outfit_history (namespace, created_at desc);
`

const QInsertOutfitHistory = `--sql 8b4e2d17-6a3c-4f95-b0d8-1c7e9a5f3b26
insert into outfit_history(
  id,
  outfit_id,
  namespace,
  kind,
  prompt_text,
  revision_text,
  image_url,
  delivery,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::timestamptz
);
`

const QListOutfitHistory = `--sql c51a7e93-2b8d-4d06-9f3a-7e2b6c1d8a45
select
  id::text,
  outfit_id,
  namespace,
  kind,
  prompt_text,
  revision_text,
  image_url,
  delivery,
  created_at
from outfit_history
where namespace = $1::text
order by created_at desc
limit $2::int;
`
