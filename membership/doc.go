// Package membership expõe a verificação "usuário U é membro do grupo G?" via
// HTTP (net/http + chi).
//
// Visão geral (camadas):
//
//   - domain: tipos, erros de domínio e contratos (sem net/http)
//   - application: orquestração das chamadas externas e cache de respostas
//   - infra: cliente da API do VK, stores de cache, rate limit e estatísticas
//   - membership (este pacote): rotas, validação da entrada, extração do token
//     e tradução de erros para status HTTP
//
// Fluxo de uma verificação:
//
//  1. Decodifica {user_id, group_id} do corpo JSON e lê o header vk_service_token
//  2. Valida os ids (não vazios, 1 a 32 caracteres); falha responde 400
//  3. Consulta o cache; em miss, orquestra users.get e groups.isMember em paralelo
//  4. Responde 200, 404 (usuário não encontrado), 400 (parâmetro inválido) ou 502
package membership
