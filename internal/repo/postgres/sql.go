package postgres

const eventInsertSQL = `
INSERT INTO flight_events (
  id, event_type, aggregate_type, aggregate_id, payload, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const eventListByAggregateSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM flight_events
WHERE aggregate_id = $1
ORDER BY occurred_at DESC
LIMIT $2
`

const outboxFetchPendingSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM flight_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE flight_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
