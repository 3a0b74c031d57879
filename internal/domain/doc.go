// Package domain models RTDAS (real-time data acquisition system) telemetry
// sources and the records they produce.
//
// # Sources
//
// Three families of field hardware report through HTTP APIs:
//
//	AWS   automatic weather stations (rain, temperature, wind, pressure, humidity, radiation)
//	AWLR  automatic water-level recorders
//	ARG   automatic rain gauges
//
// Each family exposes a readings endpoint whose JSON body carries records under
// "content", and a master-data endpoint describing stations under "data".
//
// # Fault values
//
// Loggers emit -99 when a sensor is faulty or out of range. A reading with -99,
// null or "" in any required field is rejected as a whole; partial readings are
// not meaningful for aggregation. Rejections are not errors and only show up
// as the gap between fetched and persisted counts.
//
// # Idempotence
//
// Readings are keyed by (stationID, inputDate) and inserted with
// ON CONFLICT DO NOTHING. Master rows are keyed by stationID and overwritten on
// conflict. Uniqueness is enforced by the database; each record also carries a
// random UUID generated at validation time.
package domain
