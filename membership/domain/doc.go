// Package domain define os tipos e contratos da verificação de participação
// em grupos (usuário U é membro do grupo G?).
//
// Este pacote não depende de net/http, de Redis nem do cliente da API externa.
// Os erros de domínio formam um conjunto fechado (ver Error) para que a camada
// HTTP consiga mapear cada caso para um status de forma exaustiva.
package domain
