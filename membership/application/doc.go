// Package application contém os casos de uso da verificação de participação:
// a orquestração das duas chamadas externas (Service) e o cache de respostas
// com single-flight por chave (ResponseCache).
//
// Depende apenas do pacote domain e não conhece net/http.
package application
