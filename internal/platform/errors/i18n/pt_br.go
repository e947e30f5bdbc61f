package i18n

var ptBRMessages = map[Code]string{
	CodeUnknown:             "Algo deu errado. Tente novamente.",
	CodeInvalidArgument:     "A solicitação está incompleta ou tem dados inválidos.",
	CodeForbidden:           "Você não pode fazer isso nesta conexão.",
	CodeInvalidState:        "Esta ação não está disponível agora.",
	CodeConflict:            "Isso já foi resolvido.",
	CodeDuplicateConnection: "Você já tem uma conexão com esta pessoa.",
	CodeRateLimited:         "Você enviou pedidos demais. Tente mais tarde.",
	CodeInvalidCode:         "Esse código não funcionou.",
	CodeCodeExpired:         "Este código expirou. Peça um novo.",
	CodeEmptyContent:        "Escreva algo antes de enviar.",
	CodeAlreadyRequested:    "Você já pediu. Aguardando a outra pessoa.",
	CodeNotFound:            "Não encontramos isso.",
}
