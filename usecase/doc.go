/*
Package usecase 定义 moneta 内置的用例目录及其工作流装配。

# 用例

  - fsi_banking：bank-coordinator 协调 CRM、CIO 研究、基金与新闻四个专家。
  - fsi_insurance：ins-coordinator 协调保险 CRM 与保单研究两个专家。

# 装配

NewCapabilityRegistry 按配置注册全部能力函数（CRM 档案、检索、新闻），
UseCase.BuildFunc 返回编排器使用的惰性构建函数，NewRegistry 为每个用例
创建一个编排器。提示词为样例内容。
*/
package usecase
