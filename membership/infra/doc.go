// Package infra contém implementações concretas para os contratos definidos no
// pacote domain.
//
// Exemplos:
//   - VKClient: cliente HTTP da API externa (users.get e groups.isMember)
//   - LimiterStore: token bucket por chave usando golang.org/x/time/rate
//   - MemoryResultStore / RedisResultStore: armazenamento do cache de respostas
//   - MemoryStatsStore / RedisStatsStore: estatísticas das verificações
package infra
